package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                        "/",
		"/":                       "/",
		"/metrics":                "/metrics",
		"/auth/me":                "/auth/me",
		"/auth/me/":               "/auth/me",
		"/auth/login?next=/admin": "/auth/login",
		"/auth/send-verification": "/auth/send-verification",
		"/scholarships/123":       "other",
		"/auth/unknown":           "other",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
