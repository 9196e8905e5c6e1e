package discovery

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"slices"
	"sync"
	"time"
)

const (
	multicastIpAddress = "239.0.0.1"
	keySize            = 8
	maxPacketSize      = 1024
)

// Discover announces Info and listens for the announcements of others.
// Configure Info, Port and IntervalBetweenAnnouncements before Start.
type Discover struct {
	Info                         []byte
	Port                         uint16
	IntervalBetweenAnnouncements time.Duration
	Logger                       *slog.Logger
	Entries                      chan Entry

	conn     *net.UDPConn
	sendConn *net.UDPConn
	key      []byte
	done     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// Entry is one announcement received from a peer.
type Entry struct {
	Info []byte
	Time time.Time
}

// Start joins the multicast group and starts announcing and listening.
func (d *Discover) Start() error {
	if len(d.Info) > maxPacketSize-keySize {
		return fmt.Errorf("announcement of %d bytes exceeds %d", len(d.Info), maxPacketSize-keySize)
	}
	if d.IntervalBetweenAnnouncements <= 0 {
		d.IntervalBetweenAnnouncements = time.Second
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	d.Entries = make(chan Entry, 10)
	d.done = make(chan struct{})
	d.key = []byte(fmt.Sprintf("%08x", rand.Uint32()))
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", multicastIpAddress, d.Port))
	if err != nil {
		return err
	}
	d.conn, err = net.ListenMulticastUDP("udp", nil, addr)
	if err != nil {
		return err
	}
	d.sendConn, err = net.DialUDP("udp", nil, addr)
	if err != nil {
		return errors.Join(err, d.conn.Close())
	}
	d.wg.Add(2)
	go d.listen()
	go d.announce()
	return nil
}

// Close stops announcing and listening, then closes Entries.
func (d *Discover) Close() error {
	var err error
	d.once.Do(func() {
		close(d.done)
		err1 := d.conn.Close()
		err2 := d.sendConn.Close()
		d.wg.Wait()
		close(d.Entries)
		err = errors.Join(err1, err2)
	})
	return err
}

func (d *Discover) listen() {
	defer d.wg.Done()
	buffer := make([]byte, maxPacketSize)
	for {
		n, _, err := d.conn.ReadFromUDP(buffer)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			d.Logger.Warn("discovery read failed", "err", err)
			continue
		}
		message := buffer[:n]
		if n < keySize || slices.Equal(message[:keySize], d.key) {
			continue
		}
		entry := Entry{
			Info: slices.Clone(message[keySize:]),
			Time: time.Now(),
		}
		select {
		case d.Entries <- entry:
		case <-d.done:
			return
		}
	}
}

func (d *Discover) announce() {
	defer d.wg.Done()
	packet := append(slices.Clone(d.key), d.Info...)
	ticker := time.NewTicker(d.IntervalBetweenAnnouncements)
	defer ticker.Stop()
	for {
		if _, err := d.sendConn.Write(packet); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			d.Logger.Warn("discovery announcement failed", "err", err)
		}
		select {
		case <-ticker.C:
		case <-d.done:
			return
		}
	}
}
