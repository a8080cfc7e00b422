package net

import (
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/hashicorp/mdns"
)

const serviceType = "_zidraw._tcp"

// Advertise announces the server on the local network so the draw command
// can find it without an address.
func Advertise(instance string, port int) (*mdns.Server, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("could not get hostname: %w", err)
		}
		instance = host
	}

	service, err := mdns.NewMDNSService(
		instance,
		serviceType,
		"", // .local
		"", // os hostname
		port,
		nil, // detect ips
		[]string{"ZiDraw"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}
	glog.Infof("[mdns] advertising %s on port %d", instance, port)
	return server, nil
}

// Browse looks for advertised servers for the given time and reports each
// one as host:port.
func Browse(timeout time.Duration, found func(name, addr string)) error {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			found(e.Name, fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port))
		}
	}()

	params := mdns.DefaultParams(serviceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	<-done
	return err
}
