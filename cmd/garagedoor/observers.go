package main

import (
	"context"
	"errors"
	"time"

	"github.com/nerrad567/garagedoor/internal/api"
	"github.com/nerrad567/garagedoor/internal/connectivity"
	"github.com/nerrad567/garagedoor/internal/door"
	"github.com/nerrad567/garagedoor/internal/infrastructure/influxdb"
	"github.com/nerrad567/garagedoor/internal/infrastructure/logging"
	"github.com/nerrad567/garagedoor/internal/journal"
	"github.com/nerrad567/garagedoor/internal/metrics"
	"github.com/nerrad567/garagedoor/internal/process"
	"github.com/nerrad567/garagedoor/internal/wifi"
)

// journalWriteTimeout bounds one journal insert from a component hook.
const journalWriteTimeout = 2 * time.Second

// observers fans component events out to metrics, status, journal, and
// telemetry. journal, influx, and dhcp are optional.
type observers struct {
	log     *logging.Logger
	metrics *metrics.Metrics
	tracker *api.Tracker
	journal *journal.Store
	influx  *influxdb.Client
	dhcp    *wifi.DHCP
}

func (o *observers) door(sensor string, state door.State) {
	o.metrics.ObserveDoor(sensor, state)
	o.tracker.ObserveDoor(sensor, state)
	o.record(journal.KindDoor, sensor, state.String())
	if o.influx != nil {
		o.influx.WriteDoorState(sensor, state.String())
	}
}

func (o *observers) pulse(actuator string, held time.Duration, err error) {
	o.metrics.ObservePulse(actuator, held, err)
	o.tracker.ObservePulse(actuator, held, err)

	value := metrics.PulseOK
	if err != nil {
		value = metrics.PulseFailed
	}
	// An interrupted pulse at shutdown is not worth recording.
	if !errors.Is(err, context.Canceled) {
		o.record(journal.KindPulse, actuator, value)
	}
	if o.influx != nil {
		o.influx.WritePulse(actuator, held, err)
	}
}

func (o *observers) message(result string) {
	o.metrics.ObserveMessage(result)
}

func (o *observers) connectivity(from, to connectivity.State) {
	o.metrics.ObserveConnectivity(from, to)
	o.tracker.ObserveConnectivity(from, to)
	o.record(journal.KindConnectivity, "supervisor", to.String())
	if o.influx != nil {
		o.influx.WriteConnectivity(to.String(), int(to))
	}

	// A returning link needs a fresh lease rather than the client's
	// backed-off retry schedule.
	if o.dhcp != nil && from == connectivity.Disconnected && to == connectivity.LinkUp {
		if err := o.dhcp.Renew(); err != nil && !errors.Is(err, process.ErrNotRunning) {
			o.log.Warn("dhcp renew failed", "error", err)
		}
	}
}

func (o *observers) record(kind, subject, value string) {
	if o.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := o.journal.Record(ctx, &journal.Entry{Kind: kind, Subject: subject, Value: value}); err != nil {
		o.log.Warn("journal write failed", "kind", kind, "subject", subject, "error", err)
	}
}
