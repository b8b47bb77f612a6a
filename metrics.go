package imapfs

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	operations   *prometheus.CounterVec
	rebuilds     *prometheus.CounterVec
	staleRetries prometheus.Counter
	partialMoves prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imapfs_operations_total",
			Help: "Filesystem operations by operation and result kind.",
		}, []string{"op", "result"}),
		rebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imapfs_index_rebuilds_total",
			Help: "Message index builds by reason.",
		}, []string{"reason"}),
		staleRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imapfs_stale_retries_total",
			Help: "Operations retried once after a stale message index.",
		}),
		partialMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imapfs_partial_moves_total",
			Help: "Moves that copied a message but could not remove the source.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	if m.operations, err = register(reg, m.operations); err != nil {
		return nil, err
	}
	if m.rebuilds, err = register(reg, m.rebuilds); err != nil {
		return nil, err
	}
	if m.staleRetries, err = register(reg, m.staleRetries); err != nil {
		return nil, err
	}
	if m.partialMoves, err = register(reg, m.partialMoves); err != nil {
		return nil, err
	}
	return m, nil
}

// register reuses a collector an earlier FS registered with reg.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// resultLabel is "ok" or the kind of a translated error.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var pe *PathError
	if errors.As(err, &pe) && pe.Kind != nil {
		return pe.Kind.Error()
	}
	return classify(err).Error()
}
