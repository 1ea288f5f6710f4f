package netcore

import (
	"fmt"

	"github.com/l2fabric/l2fabric/pkg/brokererr"
	"github.com/l2fabric/l2fabric/pkg/model"
)

func invalidStateErr(serviceID int, from, to model.State) error {
	return brokererr.New(brokererr.KindInvalidState, fmt.Sprintf("service-%d", serviceID),
		fmt.Sprintf("cannot move from %s to %s", from, to))
}

func terminalExistsErr(network, terminal string) error {
	return brokererr.New(brokererr.KindTerminalExists, terminal, "already registered on "+network)
}

func unknownTerminalErr(terminal string) error {
	return brokererr.New(brokererr.KindUnknownTerminal, terminal, "")
}

func ownTerminalErr(terminal string) error {
	return brokererr.New(brokererr.KindOwnTerminal, terminal, "expected an inferior terminal")
}

func unknownTrunkErr(id string) error {
	return brokererr.New(brokererr.KindUnknownTrunk, id, "")
}

func unknownSubnetworkErr(name string) error {
	return brokererr.New(brokererr.KindUnknownSubnetwork, name, "")
}

func terminalInUseErr(terminal string) error {
	return brokererr.New(brokererr.KindTerminalInUse, terminal, "in use by a live service or trunk")
}

func unroutableErr(serviceID int, detail string) error {
	return brokererr.New(brokererr.KindUnroutable, fmt.Sprintf("service-%d", serviceID), detail)
}

func outOfLabelsErr(trunkID string) error {
	return brokererr.New(brokererr.KindOutOfLabels, trunkID, "")
}

func outOfBandwidthErr(trunkID string) error {
	return brokererr.New(brokererr.KindOutOfBandwidth, trunkID, "")
}

func fabricErr(entity string, cause error) error {
	return brokererr.Wrap(brokererr.KindFabricError, entity, cause)
}
