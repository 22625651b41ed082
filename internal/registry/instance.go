package registry

import (
	"net"
	"strconv"

	"github.com/polaris-governance/core/internal/errs"
)

// SplitHostPort decodes an instance ID into the (host, port) pair the
// health-check chain needs to dial. The registry stores opaque
// instance IDs per §4.9's "thin (ServiceKey, []InstanceId) set"
// contract; this module resolves the GLOSSARY's "Instance: a network
// endpoint (host, port)" by requiring IDs to be in "host:port" form,
// the same shape net.JoinHostPort produces and the convention the
// original source's discovery client already uses for instance keys.
func SplitHostPort(instanceID string) (host string, port int, err error) {
	h, p, splitErr := net.SplitHostPort(instanceID)
	if splitErr != nil {
		return "", 0, errs.Wrap("registry.SplitHostPort", errs.InvalidConfig, splitErr).WithInstance(instanceID)
	}
	portNum, convErr := strconv.Atoi(p)
	if convErr != nil {
		return "", 0, errs.Wrap("registry.SplitHostPort", errs.InvalidConfig, convErr).WithInstance(instanceID)
	}
	return h, portNum, nil
}
