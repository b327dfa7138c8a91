package nodes

import (
	"fmt"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"
)

const (
	// KindTopology marks stale or inconsistent graph data: unknown node
	// types, dangling connections, unknown bridge types. Loads log these and
	// keep going.
	KindTopology ftag.Kind = "TOPOLOGY"
	// KindProtocol marks misuse of the graph API, such as sending through a
	// destroyed port or closing a cycle.
	KindProtocol ftag.Kind = "PROTOCOL"
)

func protocolf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fault.Wrap(fault.New(msg), ftag.With(KindProtocol))
}

func topologyf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fault.Wrap(fault.New(msg), ftag.With(KindTopology))
}

func notFoundf(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return fault.Wrap(fault.New(msg), ftag.With(ftag.NotFound))
}

func wrap(err error, msg string) error {
	return fault.Wrap(err, fmsg.With(msg))
}

func IsProtocol(err error) bool { return err != nil && ftag.Get(err) == KindProtocol }
func IsTopology(err error) bool { return err != nil && ftag.Get(err) == KindTopology }
func IsNotFound(err error) bool { return err != nil && ftag.Get(err) == ftag.NotFound }
