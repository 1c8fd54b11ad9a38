package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// NetworkFlags covers the peer transport's listen addresses and discovery
// mechanisms (§4.9).
func NetworkFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringSliceFlag{
			Name:  "listen",
			Usage: "Multiaddr(s) to listen on (repeatable); default is a random TCP port on all interfaces",
		},
		cli.BoolTFlag{
			Name:  "mdns",
			Usage: "Enable mDNS peer discovery on the local network",
		},
		cli.BoolFlag{
			Name:  "dht",
			Usage: "Enable Kademlia DHT peer discovery",
		},
	}
}

// PairingFlags declares a join-peer flag carrying a peer's full multiaddr.
// The launcher does not register these flags and nothing reads the value.
func PairingFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "join-peer",
			Usage: "Full multiaddr (including /p2p/<id>) of the peer to dial during pairing",
		},
	}
}
