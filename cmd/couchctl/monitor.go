// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-couchdb/couchclient"
	"github.com/diffeo/go-couchdb/couchdata"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"github.com/urfave/negroni"
)

var clusterUp = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "couchdb",
		Name:      "cluster_up",
		Help:      "1 if the last _up check succeeded",
	},
)

var clusterNodes = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "couchdb",
		Name:      "cluster_nodes",
		Help:      "Nodes known to the cluster, by membership list",
	},
	[]string{
		"kind",
	},
)

var activeTasks = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "couchdb",
		Name:      "active_tasks",
		Help:      "Tasks currently running on the cluster",
	},
)

var databases = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "couchdb",
		Name:      "databases",
		Help:      "Number of databases",
	},
)

func init() {
	prometheus.MustRegister(clusterUp, clusterNodes, activeTasks, databases)
	prometheus.MustRegister(couchclient.Collectors()...)
}

// monitor periodically polls a server and updates the gauges.
type monitor struct {
	Server   *couchclient.Server
	Clock    clock.Clock
	Interval time.Duration
	Logger   *logrus.Logger
}

// observe polls once.
func (m *monitor) observe() {
	up := m.Server.Up()
	if up.OK() && up.GetString("status") == "ok" {
		clusterUp.Set(1)
	} else {
		clusterUp.Set(0)
		m.Logger.WithField("result", up.Value()).Warn("CouchDB is not up")
	}

	var membership couchdata.Membership
	if err := m.Server.Membership().Decode(&membership); err == nil {
		clusterNodes.With(prometheus.Labels{"kind": "all"}).Set(float64(len(membership.AllNodes)))
		clusterNodes.With(prometheus.Labels{"kind": "cluster"}).Set(float64(len(membership.ClusterNodes)))
	} else {
		m.Logger.WithField("err", err).Warn("Could not read membership")
	}

	if tasks := m.Server.ActiveTasks(); tasks.OK() && tasks.List() != nil {
		activeTasks.Set(float64(len(tasks.List())))
	}
	if dbs := m.Server.AllDBs(); dbs.OK() && dbs.List() != nil {
		databases.Set(float64(len(dbs.List())))
	}
}

// run polls immediately and then once per interval until stop is
// closed.
func (m *monitor) run(stop <-chan struct{}) {
	ticker := m.Clock.Ticker(m.Interval)
	defer ticker.Stop()
	m.observe()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.observe()
		}
	}
}

// handler serves /metrics and a liveness check.
func (m *monitor) handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte("ok\n"))
	})
	n := negroni.New(negroni.NewRecovery())
	n.UseHandler(r)
	return n
}

func (ctl *controller) monitorCommand() cli.Command {
	return cli.Command{
		Name:  "monitor",
		Usage: "poll the cluster and export Prometheus metrics",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "listen",
				Value: ":9184",
				Usage: "[ip]:port to serve /metrics on",
			},
			cli.DurationFlag{
				Name:  "interval",
				Value: 15 * time.Second,
				Usage: "time between polls",
			},
		},
		Action: func(c *cli.Context) error {
			logger := logrus.New()
			logger.Out = ctl.Err
			m := &monitor{
				Server:   ctl.Server,
				Clock:    clock.New(),
				Interval: c.Duration("interval"),
				Logger:   logger,
			}
			go m.run(make(chan struct{}))
			logger.WithField("listen", c.String("listen")).Info("Serving metrics")
			return http.ListenAndServe(c.String("listen"), m.handler())
		},
	}
}
