// Package discovery advertises the receiver's multicast status and audio
// streams via DNS-SD/mDNS, so operator consoles and display processes can
// find a running receiver without being told its multicast group and port
// in advance.
//
// Grounded on dns_sd.go's dns_sd_announce: the same dnssd.Config/
// NewService/NewResponder/Add/Respond sequence, generalized from
// announcing one fixed TCP KISS service to announcing an arbitrary set of
// UDP multicast services (one per receiver stream).
package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// ServiceType names the DNS-SD service type strings this receiver
// advertises, paralleling dns_sd.go's DNS_SD_SERVICE constant.
const (
	ServiceTypeStatus = "_radiod-status._udp"
	ServiceTypeAudio  = "_radiod-audio._udp"
)

// Advertisement describes one multicast stream to announce.
type Advertisement struct {
	Name string // instance name, e.g. "radiod on tower1"
	Type string // one of the ServiceType constants
	Port int
}

// Advertiser holds the running DNS-SD responder and the services
// registered with it.
type Advertiser struct {
	responder dnssd.Responder
	logger    *log.Logger
}

// New creates an Advertiser. logger may be nil, in which case responder
// errors are silently dropped -- this package shouldn't force a logger on
// every caller; cmd/radiod always supplies one.
func New(logger *log.Logger) (*Advertiser, error) {
	rp, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: new responder: %w", err)
	}
	return &Advertiser{responder: rp, logger: logger}, nil
}

// toDNSSDConfig maps an Advertisement onto the dnssd library's config
// type, split out from Add so the mapping is testable without touching
// the network.
func toDNSSDConfig(ad Advertisement) dnssd.Config {
	return dnssd.Config{
		Name: ad.Name,
		Type: ad.Type,
		Port: ad.Port,
	}
}

// Add registers one service advertisement. Call before Run; services
// added after Run has started are picked up the next time the responder
// probes (dnssd.Responder.Add is safe to call concurrently with Respond).
func (a *Advertiser) Add(ad Advertisement) error {
	sv, err := dnssd.NewService(toDNSSDConfig(ad))
	if err != nil {
		return fmt.Errorf("discovery: new service %q: %w", ad.Name, err)
	}
	if _, err := a.responder.Add(sv); err != nil {
		return fmt.Errorf("discovery: add service %q: %w", ad.Name, err)
	}
	if a.logger != nil {
		a.logger.Info("advertising service", "name", ad.Name, "type", ad.Type, "port", ad.Port)
	}
	return nil
}

// Run starts responding to mDNS queries, blocking until ctx is canceled.
// Run the same way dns_sd_announce launches its responder: as a
// background goroutine from the caller.
func (a *Advertiser) Run(ctx context.Context) error {
	err := a.responder.Respond(ctx)
	if err != nil && a.logger != nil {
		a.logger.Error("responder stopped", "err", err)
	}
	return err
}
