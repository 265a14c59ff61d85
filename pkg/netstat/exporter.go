package netstat

import (
	"net"
	"sync"

	"github.com/higebu/netfd"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector tracks every live netstat.Conn and implements
// prometheus.Collector, so `hopo connect --metrics-addr` can expose byte
// counters per role without the transport package importing Prometheus
// directly.
type Collector struct {
	mu    sync.Mutex
	conns map[*Conn]int // conn -> raw fd, captured at Track time for diagnostics

	rxBytes *prometheus.Desc
	txBytes *prometheus.Desc
	opened  *prometheus.Desc
}

// NewCollector returns a Collector whose metric names are prefixed with
// prefix (e.g. "hoposhell").
func NewCollector(prefix string) *Collector {
	labels := []string{"role"}
	return &Collector{
		conns: make(map[*Conn]int),
		rxBytes: prometheus.NewDesc(prefix+"_conn_rx_bytes", "Bytes received on a tracked connection.", labels, nil),
		txBytes: prometheus.NewDesc(prefix+"_conn_tx_bytes", "Bytes sent on a tracked connection.", labels, nil),
		opened:  prometheus.NewDesc(prefix+"_conn_opened_unixnano", "Time the tracked connection was opened.", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rxBytes
	ch <- c.txBytes
	ch <- c.opened
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for conn := range c.conns {
		ch <- prometheus.MustNewConstMetric(c.rxBytes, prometheus.CounterValue, float64(conn.RxBytes), conn.Role)
		ch <- prometheus.MustNewConstMetric(c.txBytes, prometheus.CounterValue, float64(conn.TxBytes), conn.Role)
		ch <- prometheus.MustNewConstMetric(c.opened, prometheus.GaugeValue, float64(conn.OpenedAt.UnixNano()), conn.Role)
	}
}

// Track registers conn with the collector and deregisters it automatically
// when the underlying net.Conn is closed. It returns conn unchanged so it
// can be composed inline with Wrap.
func (c *Collector) Track(conn *Conn) *Conn {
	c.mu.Lock()
	fd := fdOf(conn.Conn)
	c.conns[conn] = fd
	c.mu.Unlock()

	reportStats := conn.reportStats
	conn.reportStats = func(tracked *Conn, state State) {
		if state == Closed {
			c.mu.Lock()
			delete(c.conns, tracked)
			c.mu.Unlock()
		}
		if reportStats != nil {
			reportStats(tracked, state)
		}
	}
	return conn
}

// fdOf returns the raw file descriptor backing conn, or -1 when conn is
// not a *net.TCPConn (e.g. in unit tests using net.Pipe).
func fdOf(conn net.Conn) int {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return -1
	}
	defer func() { recover() }() // netfd panics on unsupported platforms
	return netfd.GetFdFromConn(tcpConn)
}
