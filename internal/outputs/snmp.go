package outputs

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/nickborgers/monorepo/scholar-citations/internal/browser"
	"github.com/nickborgers/monorepo/scholar-citations/internal/config"
	"github.com/nickborgers/monorepo/scholar-citations/internal/models"
)

const (
	defaultTrapPort = 162
	trapTimeout     = 5 * time.Second

	// snmpTrapOID.0 from SNMPv2-MIB
	snmpTrapOID = ".1.3.6.1.6.3.1.1.4.1.0"
)

// Trap types, appended to <enterprise>.0
const (
	trapSnapshotCaptured = 1
	trapFetchFailed      = 2
)

// Varbind columns, appended to <enterprise>.1
const (
	varSource    = 1
	varName      = 2
	varCitations = 3
	varHIndex    = 4
	varI10Index  = 5
	varFetchedAt = 6
	varError     = 7
	varCategory  = 8
)

var metricVarbinds = map[models.MetricKind]int{
	models.MetricCitations: varCitations,
	models.MetricHIndex:    varHIndex,
	models.MetricI10Index:  varI10Index,
}

// SNMPOutput sends SNMPv2c traps for captured snapshots and failed fetches
type SNMPOutput struct {
	config  *config.SNMPConfig
	targets []trapTarget
}

type trapTarget struct {
	host string
	port uint16
}

func (t trapTarget) String() string {
	return net.JoinHostPort(t.host, strconv.Itoa(int(t.port)))
}

// NewSNMPOutput creates a new SNMP trap sender
func NewSNMPOutput(cfg *config.SNMPConfig) (*SNMPOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	s := &SNMPOutput{config: cfg}
	for _, raw := range cfg.TrapTargets {
		target, err := parseTrapTarget(raw)
		if err != nil {
			return nil, err
		}
		s.targets = append(s.targets, target)
	}

	slog.Info("SNMP trap output enabled",
		"targets", len(s.targets),
		"enterprise_oid", cfg.EnterpriseOID,
	)

	return s, nil
}

// parseTrapTarget accepts "host" or "host:port"
func parseTrapTarget(raw string) (trapTarget, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return trapTarget{}, fmt.Errorf("empty SNMP trap target")
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		// No port given
		return trapTarget{host: strings.Trim(raw, "[]"), port: defaultTrapPort}, nil
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return trapTarget{}, fmt.Errorf("invalid SNMP trap target port %q in %q", portStr, raw)
	}
	return trapTarget{host: host, port: uint16(port)}, nil
}

// Write sends a snapshot-captured trap carrying the metric values
func (s *SNMPOutput) Write(ctx context.Context, snapshot *models.ProfileSnapshot) error {
	if s == nil {
		return nil
	}

	vars := []gosnmp.SnmpPDU{
		s.trapTypePDU(trapSnapshotCaptured),
		s.stringPDU(varSource, snapshot.Source),
		s.stringPDU(varFetchedAt, snapshot.FetchedAt.String()),
	}
	if snapshot.Name != nil {
		vars = append(vars, s.stringPDU(varName, *snapshot.Name))
	}
	for _, kind := range models.KnownMetrics {
		if v := snapshot.Metric(kind); v != nil {
			vars = append(vars, gosnmp.SnmpPDU{
				Name:  s.varOID(metricVarbinds[kind]),
				Type:  gosnmp.Counter64,
				Value: uint64(max(*v, 0)),
			})
		}
	}

	return s.SendTrap(ctx, gosnmp.SnmpTrap{Variables: vars})
}

// ReportFailure sends a fetch-failed trap
func (s *SNMPOutput) ReportFailure(ctx context.Context, source string, err error) error {
	if s == nil {
		return nil
	}

	return s.SendTrap(ctx, gosnmp.SnmpTrap{Variables: []gosnmp.SnmpPDU{
		s.trapTypePDU(trapFetchFailed),
		s.stringPDU(varSource, source),
		s.stringPDU(varError, err.Error()),
		s.stringPDU(varCategory, browser.ErrorCategory(err)),
	}})
}

// SendTrap delivers trap to every configured target. Delivery to one target
// failing does not stop the others; the first error is returned.
func (s *SNMPOutput) SendTrap(ctx context.Context, trap gosnmp.SnmpTrap) error {
	if s == nil || len(s.targets) == 0 {
		return nil
	}

	var firstErr error
	for _, target := range s.targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.sendTo(ctx, target, trap); err != nil {
			slog.Warn("Failed to send SNMP trap", "target", target.String(), "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		slog.Debug("SNMP trap sent", "target", target.String())
	}

	return firstErr
}

func (s *SNMPOutput) sendTo(ctx context.Context, target trapTarget, trap gosnmp.SnmpTrap) error {
	client := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    target.host,
		Port:      target.port,
		Transport: "udp",
		Community: s.config.Community,
		Version:   gosnmp.Version2c,
		Timeout:   trapTimeout,
		Retries:   0,
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect to %s: %w", target, err)
	}
	defer client.Conn.Close()

	if _, err := client.SendTrap(trap); err != nil {
		return fmt.Errorf("send to %s: %w", target, err)
	}
	return nil
}

func (s *SNMPOutput) trapTypePDU(trapType int) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{
		Name:  snmpTrapOID,
		Type:  gosnmp.ObjectIdentifier,
		Value: fmt.Sprintf("%s.0.%d", s.config.EnterpriseOID, trapType),
	}
}

func (s *SNMPOutput) stringPDU(column int, value string) gosnmp.SnmpPDU {
	return gosnmp.SnmpPDU{
		Name:  s.varOID(column),
		Type:  gosnmp.OctetString,
		Value: value,
	}
}

func (s *SNMPOutput) varOID(column int) string {
	return fmt.Sprintf("%s.1.%d", s.config.EnterpriseOID, column)
}

// Name returns the output module name
func (s *SNMPOutput) Name() string {
	return "snmp"
}
