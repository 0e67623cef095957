package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"
)

// Service types and domain.
const (
	// ServiceTypeMQTT is the DNS-SD service type of plain MQTT brokers.
	ServiceTypeMQTT = "_mqtt._tcp"

	// ServiceTypeSecureMQTT is the DNS-SD service type of MQTT over TLS.
	ServiceTypeSecureMQTT = "_secure-mqtt._tcp"

	// Domain is the mDNS domain.
	Domain = "local"
)

// DefaultBrowseTimeout bounds FindBroker when the context has no deadline.
const DefaultBrowseTimeout = 5 * time.Second

// Discovery errors.
var (
	ErrNotFound = errors.New("no broker found")
)

// BrokerService is a discovered MQTT broker.
type BrokerService struct {
	// InstanceName is the DNS-SD instance name.
	InstanceName string

	// Host is the advertised host name.
	Host string

	// Port is the broker port.
	Port uint16

	// Addresses holds the IP addresses seen on all interfaces.
	Addresses []string

	// TLS is set for _secure-mqtt._tcp services.
	TLS bool

	// Text holds the TXT records.
	Text TXTRecordMap
}

// Address returns host:port for connecting, preferring the first IP
// address over the host name.
func (s *BrokerService) Address() string {
	host := s.Host
	if len(s.Addresses) > 0 {
		host = s.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(int(s.Port)))
}

// BrowserConfig configures broker browsing.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface (empty for all).
	Interface string

	// Timeout bounds FindBroker. Zero means DefaultBrowseTimeout.
	Timeout time.Duration

	// IncludeTLS also browses _secure-mqtt._tcp.
	IncludeTLS bool
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{Timeout: DefaultBrowseTimeout, IncludeTLS: true}
}

// Browser discovers brokers.
type Browser interface {
	// BrowseBrokers streams brokers until ctx is done. Each broker is sent
	// once, when it is first seen.
	BrowseBrokers(ctx context.Context) (<-chan *BrokerService, error)

	// FindBroker returns the first broker seen.
	FindBroker(ctx context.Context) (*BrokerService, error)

	// Stop cancels all browsing.
	Stop()
}
