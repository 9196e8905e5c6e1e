// Package discovery announces a node on the local network and reports the
// announcements of other nodes, using UDP multicast.
//
//	d := &discovery.Discover{
//		Info:                         []byte("192.168.1.20:5000"),
//		Port:                         9999,
//		IntervalBetweenAnnouncements: 5 * time.Second,
//	}
//	if err := d.Start(); err != nil {
//		return err
//	}
//	defer d.Close()
//
//	for entry := range d.Entries {
//		l.RegisterNode(string(entry.Info))
//	}
//
// Announcements go to 239.0.0.1 on Port. Each instance prefixes its packets
// with a random 8-byte key and drops packets carrying its own key. Entries
// is closed after Close.
package discovery
