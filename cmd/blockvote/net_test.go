package main

import (
	"net"
	"testing"
)

func TestGuessIpAddress24(t *testing.T) {
	addr := net.IP{192, 168, 0, 1}
	actual, err := guessIpAddress(addr, "42")
	if err != nil {
		t.Fatal(err)
	}
	expected := net.IP{192, 168, 0, 42}
	if !actual.Equal(expected) {
		t.Fatalf("expected %v, actual %v", expected, actual)
	}
}

func TestGuessIpAddress16(t *testing.T) {
	addr := net.IP{192, 168, 0, 1}
	actual, err := guessIpAddress(addr, "15.42")
	if err != nil {
		t.Fatal(err)
	}
	expected := net.IP{192, 168, 15, 42}
	if !actual.Equal(expected) {
		t.Fatalf("expected %v, actual %v", expected, actual)
	}
}

func TestGuessIpAddress0(t *testing.T) {
	addr := net.IP{192, 168, 0, 1}
	actual, err := guessIpAddress(addr, "10.100.15.42")
	if err != nil {
		t.Fatal(err)
	}
	expected := net.IP{10, 100, 15, 42}
	if !actual.Equal(expected) {
		t.Fatalf("expected %v, actual %v", expected, actual)
	}
}

func TestGuessIpAddress32(t *testing.T) {
	addr := net.IP{192, 168, 0, 1}
	actual, err := guessIpAddress(addr, "")
	if err != nil {
		t.Fatal(err)
	}
	if !actual.Equal(addr) {
		t.Fatalf("expected %v, actual %v", addr, actual)
	}
}

func TestGuessIpAddressTooManyOctets(t *testing.T) {
	if _, err := guessIpAddress(net.IP{192, 168, 0, 1}, "1.2.3.4.5"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSubnetOfListener(t *testing.T) {
	l, err := net.ListenTCP("tcp", &net.TCPAddr{
		IP:   net.ParseIP("127.0.0.1"),
		Port: 0,
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	ipnet, err := subnetOfListener(l)
	if err != nil {
		t.Fatalf("SubnetOfListener error: %v", err)
	}
	t.Logf("listener local addr: %v, subnet: %s", l.Addr(), ipnet.String())

	if !ipnet.Contains(net.ParseIP("127.0.0.1")) {
		t.Fatalf("expected subnet %s to contain 127.0.0.1", ipnet.String())
	}
}

func TestCompletePeerAddress(t *testing.T) {
	local := net.IP{192, 168, 1, 10}
	cases := []struct {
		peer string
		want string
	}{
		{"42", "192.168.1.42:5000"},
		{"0.42:5001", "192.168.0.42:5001"},
		{"10.0.0.7:6000", "10.0.0.7:6000"},
		{"node-b.local", "node-b.local:5000"},
		{"http://node-c:7000", "http://node-c:7000"},
	}
	for _, c := range cases {
		got, err := completePeerAddress(local, c.peer, 5000)
		if err != nil {
			t.Fatalf("%s: %v", c.peer, err)
		}
		if got != c.want {
			t.Fatalf("%s: expected %s, actual %s", c.peer, c.want, got)
		}
	}
}

func TestCompletePeerAddressUnspecified(t *testing.T) {
	if _, err := completePeerAddress(net.IPv4zero, "42", 5000); err == nil {
		t.Fatal("expected an error for a partial address without a concrete listen address")
	}
	got, err := completePeerAddress(net.IPv4zero, "10.0.0.7", 5000)
	if err != nil {
		t.Fatal(err)
	}
	if got != "10.0.0.7:5000" {
		t.Fatalf("expected 10.0.0.7:5000, actual %s", got)
	}
}

func TestAnnounceAddress(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	if got := announceAddress(l); got != l.Addr().String() {
		t.Fatalf("expected %s, actual %s", l.Addr().String(), got)
	}
}
