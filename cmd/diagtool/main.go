// Command diagtool is thin CLI glue over the diagnostic stack: it wires a
// socketcan or in-process loopback port through a configuration profile
// into either the UDS engine or the OBD-II adapter. The core engines never
// import this package.
package main

import (
	"flag"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/diagstack/diagstack"
	"github.com/diagstack/diagstack/pkg/config"
	"github.com/diagstack/diagstack/pkg/isotp"
	"github.com/diagstack/diagstack/pkg/obd"
	"github.com/diagstack/diagstack/pkg/transport/socketcan"
	"github.com/diagstack/diagstack/pkg/transport/virtualport"
	"github.com/diagstack/diagstack/pkg/uds"
)

func main() {
	log.SetLevel(log.DebugLevel)

	channel := flag.String("i", "vcan0", "socketcan interface, or \"virtual\" for an in-process loopback demo")
	profilePath := flag.String("profile", "", "path to an INI stack profile (defaults to built-in defaults)")
	txID := flag.Uint("tx", 0x7E0, "ISO-TP tx CAN ID")
	rxID := flag.Uint("rx", 0x7E8, "ISO-TP rx CAN ID")
	did := flag.Uint("did", 0xF190, "UDS DataIdentifier to read (VIN by default)")
	mode := flag.String("mode", "uds", "uds or obd")
	flag.Parse()

	profile := config.DefaultProfile(uint32(*txID), uint32(*rxID))
	if *profilePath != "" {
		loaded, err := config.Load(*profilePath)
		if err != nil {
			log.WithError(err).Fatal("load profile")
		}
		profile = *loaded
	}

	port, cleanup := openPort(*channel)
	defer cleanup()

	transport := isotp.NewTransport(port, profile.IsoTP)

	switch *mode {
	case "obd":
		runOBD(transport)
	default:
		runUDS(transport, profile, uint16(*did))
	}
}

func openPort(channel string) (diagstack.Port, func()) {
	if channel == "virtual" {
		a, b := virtualport.NewPair()
		_ = b // the peer end would be driven by a simulated ECU in a demo setup
		return a, func() { _ = a.Close() }
	}
	port := socketcan.New(channel)
	if err := port.Open(); err != nil {
		log.WithError(err).Fatal("open socketcan interface")
	}
	return port, func() { _ = port.Close() }
}

func runUDS(transport *isotp.Transport, profile config.Profile, did uint16) {
	engine := uds.New(transport, profile.UDS)
	if err := engine.Open(); err != nil {
		log.WithError(err).Fatal("open uds engine")
	}
	defer engine.Close()

	if err := engine.ChangeSession(uds.SessionExtended); err != nil {
		log.WithError(err).Fatal("change session")
	}

	data, err := engine.ReadDataByIdentifier(did)
	if err != nil {
		log.WithError(err).Fatal("read data by identifier")
	}
	fmt.Printf("DID %04X: % X\n", did, data)
}

func runOBD(transport *isotp.Transport) {
	adapter := obd.New(transport)

	rpm, err := adapter.ReadSensorData(0x0C)
	if err != nil {
		log.WithError(err).Fatal("read engine rpm")
	}
	fmt.Printf("%s: %.1f\n", rpm.Name, rpm.Value)

	dtcs, err := adapter.ReadStoredDTCs()
	if err != nil {
		log.WithError(err).Fatal("read stored dtcs")
	}
	fmt.Println("stored DTCs:", dtcs)
}
