package upstream

import "testing"

func TestEndpointURL(t *testing.T) {
	cases := []struct {
		name string
		base string
		want string
	}{
		{"http", "http://recorder:12555", "ws://recorder:12555/downloads/ws?token=tok"},
		{"https", "https://rec.example.com", "wss://rec.example.com/downloads/ws?token=tok"},
		{"trailing slash", "http://recorder:12555/", "ws://recorder:12555/downloads/ws?token=tok"},
		{"path prefix", "https://rec.example.com/api", "wss://rec.example.com/api/downloads/ws?token=tok"},
		{"already ws", "ws://recorder:12555", "ws://recorder:12555/downloads/ws?token=tok"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := EndpointURL(tc.base, "tok")
			if err != nil {
				t.Fatalf("EndpointURL(%q): %v", tc.base, err)
			}
			if got != tc.want {
				t.Fatalf("EndpointURL(%q) = %q, want %q", tc.base, got, tc.want)
			}
		})
	}
}

func TestEndpointURL_Rejects(t *testing.T) {
	if _, err := EndpointURL("", "tok"); err == nil {
		t.Fatal("empty base url should fail")
	}
	if _, err := EndpointURL("ftp://recorder", "tok"); err == nil {
		t.Fatal("non-http scheme should fail")
	}
}

func TestEndpointURL_TokenEscaped(t *testing.T) {
	got, err := EndpointURL("http://recorder", "a b&c")
	if err != nil {
		t.Fatal(err)
	}
	if got != "ws://recorder/downloads/ws?token=a+b%26c" {
		t.Fatalf("got %q", got)
	}
}
