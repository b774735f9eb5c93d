// Package momo defines the shared contract between the payment gateway and
// the per-network mobile-money adapters: the network and status enumerations,
// request/response shapes, the provider interface, the bearer-token cache and
// the error taxonomy.
package momo

import "fmt"

// Network identifies one of the three Malagasy mobile-money systems.
type Network string

const (
	NetworkMVola  Network = "mvola"
	NetworkOrange Network = "orange"
	NetworkAirtel Network = "airtel"
)

// Networks lists every supported network in a stable order.
func Networks() []Network {
	return []Network{NetworkMVola, NetworkOrange, NetworkAirtel}
}

// ParseNetwork validates a network identifier received from the outside.
func ParseNetwork(s string) (Network, error) {
	switch Network(s) {
	case NetworkMVola, NetworkOrange, NetworkAirtel:
		return Network(s), nil
	}
	return "", fmt.Errorf("unknown network %q", s)
}

// String implements fmt.Stringer.
func (n Network) String() string { return string(n) }
