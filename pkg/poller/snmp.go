/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package poller

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/wardflux/wardflux/pkg/models"
)

// IF-MIB interface table columns.
const (
	oidIfDescr       = ".1.3.6.1.2.1.2.2.1.2"
	oidIfOperStatus  = ".1.3.6.1.2.1.2.2.1.8"
	oidIfInOctets    = ".1.3.6.1.2.1.2.2.1.10"
	oidIfOutOctets   = ".1.3.6.1.2.1.2.2.1.16"
	oidIfName        = ".1.3.6.1.2.1.31.1.1.1.1"
	oidIfHCInOctets  = ".1.3.6.1.2.1.31.1.1.1.6"
	oidIfHCOutOctets = ".1.3.6.1.2.1.31.1.1.1.10"
	oidIfAlias       = ".1.3.6.1.2.1.31.1.1.1.18"
)

// ifTable columns in walk order. The ifXTable columns are optional since
// old agents do not implement them.
var interfaceColumns = []struct {
	oid      string
	optional bool
}{
	{oidIfDescr, false},
	{oidIfOperStatus, false},
	{oidIfInOctets, false},
	{oidIfOutOctets, false},
	{oidIfName, true},
	{oidIfHCInOctets, true},
	{oidIfHCOutOctets, true},
	{oidIfAlias, true},
}

// SNMPTarget is everything needed to poll one device. Secrets hold
// decrypted material and must not outlive the poll.
type SNMPTarget struct {
	DeviceID     int64
	Host         string
	Port         uint16
	Version      models.SNMPVersion
	Username     string
	AuthProtocol string
	PrivProtocol string
	Secrets      models.SNMPSecrets
}

// SNMPCollector walks the IF-MIB interface table with gosnmp.
type SNMPCollector struct {
	timeout time.Duration
	retries int
	now     func() time.Time
}

// NewSNMPCollector creates an SNMPCollector.
func NewSNMPCollector(timeout time.Duration, retries int) *SNMPCollector {
	return &SNMPCollector{timeout: timeout, retries: retries, now: time.Now}
}

func newClient(ctx context.Context, target *SNMPTarget, timeout time.Duration, retries int) (*gosnmp.GoSNMP, error) {
	if target.Host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrInvalidTarget)
	}

	port := target.Port
	if port == 0 {
		port = 161
	}

	client := &gosnmp.GoSNMP{
		Context:            ctx,
		Target:             target.Host,
		Port:               port,
		Timeout:            timeout,
		Retries:            retries,
		ExponentialTimeout: true,
		MaxOids:            gosnmp.MaxOids,
		MaxRepetitions:     25,
	}

	switch target.Version {
	case models.SNMPVersion1:
		client.Version = gosnmp.Version1
		client.Community = target.Secrets.Community
	case models.SNMPVersion2c, "":
		client.Version = gosnmp.Version2c
		client.Community = target.Secrets.Community
	case models.SNMPVersion3:
		client.Version = gosnmp.Version3
		client.SecurityModel = gosnmp.UserSecurityModel
		client.MsgFlags = gosnmp.NoAuthNoPriv

		usm := &gosnmp.UsmSecurityParameters{UserName: target.Username}

		if target.Secrets.AuthKey != "" {
			client.MsgFlags = gosnmp.AuthNoPriv
			usm.AuthenticationProtocol = authProtocol(target.AuthProtocol)
			usm.AuthenticationPassphrase = target.Secrets.AuthKey
		}

		if target.Secrets.PrivKey != "" {
			client.MsgFlags = gosnmp.AuthPriv
			usm.PrivacyProtocol = privProtocol(target.PrivProtocol)
			usm.PrivacyPassphrase = target.Secrets.PrivKey
		}

		client.SecurityParameters = usm
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupportedVersion, target.Version)
	}

	return client, nil
}

func authProtocol(name string) gosnmp.SnmpV3AuthProtocol {
	switch strings.ToUpper(name) {
	case "MD5":
		return gosnmp.MD5
	case "SHA224":
		return gosnmp.SHA224
	case "SHA256":
		return gosnmp.SHA256
	case "SHA384":
		return gosnmp.SHA384
	case "SHA512":
		return gosnmp.SHA512
	default:
		return gosnmp.SHA
	}
}

func privProtocol(name string) gosnmp.SnmpV3PrivProtocol {
	switch strings.ToUpper(name) {
	case "DES":
		return gosnmp.DES
	case "AES192":
		return gosnmp.AES192
	case "AES256":
		return gosnmp.AES256
	default:
		return gosnmp.AES
	}
}

// CollectInterfaces implements InterfaceCollector.
func (c *SNMPCollector) CollectInterfaces(ctx context.Context, target *SNMPTarget) ([]models.InterfaceMetric, error) {
	client, err := newClient(ctx, target, c.timeout, c.retries)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(); err != nil {
		return nil, &SNMPError{Op: "connect", Target: target.Host, Wrapped: err}
	}
	defer client.Conn.Close()

	table := newIfTable()

	for _, col := range interfaceColumns {
		var pdus []gosnmp.SnmpPDU

		if client.Version == gosnmp.Version1 {
			pdus, err = client.WalkAll(col.oid)
		} else {
			pdus, err = client.BulkWalkAll(col.oid)
		}

		if err != nil {
			if col.optional && ctx.Err() == nil {
				continue
			}

			return nil, &SNMPError{Op: "walk " + col.oid, Target: target.Host, Wrapped: err}
		}

		for _, pdu := range pdus {
			table.add(col.oid, pdu)
		}
	}

	return table.assemble(target.DeviceID, models.NewUTCTime(c.now())), nil
}

type ifRow struct {
	metric models.InterfaceMetric
	descr  string
	hcIn   bool
	hcOut  bool
}

// ifTable collects walked column values by ifIndex.
type ifTable struct {
	rows map[int]*ifRow
}

func newIfTable() *ifTable {
	return &ifTable{rows: make(map[int]*ifRow)}
}

func (t *ifTable) row(index int) *ifRow {
	r, ok := t.rows[index]
	if !ok {
		r = &ifRow{metric: models.InterfaceMetric{IfIndex: index}}
		t.rows[index] = r
	}

	return r
}

// add stores one walked value. PDUs outside the column are ignored.
func (t *ifTable) add(column string, pdu gosnmp.SnmpPDU) {
	prefix := strings.TrimPrefix(column, ".") + "."
	name := strings.TrimPrefix(pdu.Name, ".")

	if !strings.HasPrefix(name, prefix) {
		return
	}

	index, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
	if err != nil {
		return
	}

	switch pdu.Type {
	case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView, gosnmp.Null:
		return
	}

	r := t.row(index)

	switch column {
	case oidIfDescr:
		r.descr = pduString(pdu)
	case oidIfName:
		r.metric.IfName = pduString(pdu)
	case oidIfAlias:
		r.metric.IfAlias = pduString(pdu)
	case oidIfOperStatus:
		r.metric.OperStatus = int(gosnmp.ToBigInt(pdu.Value).Int64())
	case oidIfInOctets:
		if !r.hcIn {
			r.metric.InOctets = counter(pdu)
		}
	case oidIfOutOctets:
		if !r.hcOut {
			r.metric.OutOctets = counter(pdu)
		}
	case oidIfHCInOctets:
		r.metric.InOctets = counter(pdu)
		r.hcIn = true
	case oidIfHCOutOctets:
		r.metric.OutOctets = counter(pdu)
		r.hcOut = true
	}
}

// assemble returns the interfaces sorted by ifIndex.
func (t *ifTable) assemble(deviceID int64, polled models.UTCTime) []models.InterfaceMetric {
	out := make([]models.InterfaceMetric, 0, len(t.rows))

	for _, r := range t.rows {
		m := r.metric
		m.DeviceID = deviceID
		m.LastPolled = polled

		if m.IfName == "" {
			m.IfName = r.descr
		}

		m.ISPProvider = ParseISP(m.IfAlias)
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].IfIndex < out[j].IfIndex })

	return out
}

func pduString(pdu gosnmp.SnmpPDU) string {
	if b, ok := pdu.Value.([]byte); ok {
		return strings.TrimRight(string(b), "\x00")
	}

	if s, ok := pdu.Value.(string); ok {
		return s
	}

	return ""
}

func counter(pdu gosnmp.SnmpPDU) int64 {
	v := gosnmp.ToBigInt(pdu.Value)
	if !v.IsInt64() {
		return math.MaxInt64
	}

	return v.Int64()
}

var (
	ispTagPattern = regexp.MustCompile(`(?i)(?:^|[\s\[(|])isp\s*[:=-]\s*([^\s\])|,;]+)`)
	wanPattern    = regexp.MustCompile(`(?i)^wan\d*\s*[-:_]\s*([^\s\])|,;]+)`)
)

// ParseISP extracts the ISP provider from an interface alias such as
// "ISP: Telkom", "[isp=Airtel] uplink" or "WAN1-Safaricom". Aliases without
// a provider tag return "".
func ParseISP(alias string) string {
	alias = strings.TrimSpace(alias)

	if m := ispTagPattern.FindStringSubmatch(alias); m != nil {
		return m[1]
	}

	if m := wanPattern.FindStringSubmatch(alias); m != nil {
		return m[1]
	}

	return ""
}
