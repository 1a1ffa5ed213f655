package model

import "testing"

func TestParseLine_PlainIPv4(t *testing.T) {
	c, err := ParseLine("1.2.3.4:8080", ProtocolHTTP)
	if err != nil {
		t.Fatalf("ParseLine() returned an error: %v", err)
	}
	if c.Host != "1.2.3.4" || c.Port != 8080 {
		t.Errorf("Expected 1.2.3.4:8080, got %s:%d", c.Host, c.Port)
	}
	if c.Hint != ProtocolHTTP {
		t.Errorf("Expected hint 'http', got '%s'", c.Hint)
	}
	if c.Key() != "1.2.3.4:8080" {
		t.Errorf("Expected key '1.2.3.4:8080', got '%s'", c.Key())
	}
}

func TestParseLine_EmbeddedInText(t *testing.T) {
	// Sources frequently decorate lines with schemes or latency columns.
	for _, line := range []string{
		"socks5://5.6.7.8:1080",
		"  5.6.7.8:1080  ",
		"5.6.7.8:1080 | id | 120ms",
	} {
		c, err := ParseLine(line, ProtocolSocks5)
		if err != nil {
			t.Fatalf("ParseLine(%q) returned an error: %v", line, err)
		}
		if c.Key() != "5.6.7.8:1080" {
			t.Errorf("ParseLine(%q): expected key '5.6.7.8:1080', got '%s'", line, c.Key())
		}
	}
}

func TestParseLine_Hostname(t *testing.T) {
	c, err := ParseLine("proxy.example.com:3128", ProtocolHTTP)
	if err != nil {
		t.Fatalf("ParseLine() returned an error: %v", err)
	}
	if c.Host != "proxy.example.com" || c.Port != 3128 {
		t.Errorf("Expected proxy.example.com:3128, got %s:%d", c.Host, c.Port)
	}
}

func TestParseLine_Malformed(t *testing.T) {
	for _, line := range []string{
		"",
		"not a proxy",
		"1.2.3.4",
		"999.1.1.1:80",
		"1.2.3.4:0",
		"1.2.3.4:70000",
		":8080",
	} {
		if _, err := ParseLine(line, ProtocolHTTP); err == nil {
			t.Errorf("ParseLine(%q): expected an error, got none", line)
		}
	}
}

func TestKeyIgnoresHint(t *testing.T) {
	a := Candidate{Host: "1.2.3.4", Port: 8080, Hint: ProtocolHTTP}
	b := Candidate{Host: "1.2.3.4", Port: 8080, Hint: ProtocolSocks5}
	if a.Key() != b.Key() {
		t.Errorf("Identity must ignore the protocol hint: %s != %s", a.Key(), b.Key())
	}
}
