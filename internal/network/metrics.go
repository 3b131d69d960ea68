package network

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/annel0/eldara-server/internal/protocol"
)

var (
	promConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "eldara",
		Subsystem: "network",
		Name:      "connections",
		Help:      "Активные клиентские соединения.",
	})
	promPackets = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eldara",
		Subsystem: "network",
		Name:      "packets_total",
		Help:      "Пакеты по направлению и типу.",
	}, []string{"direction", "type"})
	promBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eldara",
		Subsystem: "network",
		Name:      "bytes_total",
		Help:      "Байты полезной нагрузки по направлению.",
	}, []string{"direction"})
	promErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eldara",
		Subsystem: "network",
		Name:      "errors_total",
		Help:      "Сетевые ошибки по типу.",
	}, []string{"type"})
	promCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "eldara",
		Subsystem: "movement",
		Name:      "corrections_total",
		Help:      "Отправленные клиентам коррекции позиции.",
	})
)

// Transport тип транспорта соединения
type Transport string

const (
	TransportTCP Transport = "tcp"
	TransportKCP Transport = "kcp"
)

// NetworkMetrics содержит метрики сетевой подсистемы
type NetworkMetrics struct {
	// Общие метрики
	TotalConnections    int64
	ActiveConnections   int64
	RejectedConnections int64
	TotalMessages       int64
	TotalBytes          int64

	// Метрики по транспортам
	TransportMetrics map[Transport]*TransportTypeMetrics

	// Метрики по типам пакетов
	MessageMetrics map[protocol.PacketType]*MessageTypeMetrics

	// Ошибки
	ErrorMetrics ErrorStatistics

	// Последнее обновление
	LastUpdate time.Time

	mu sync.RWMutex
}

// TransportTypeMetrics метрики для конкретного транспорта
type TransportTypeMetrics struct {
	ActiveConnections int64
	MessagesSent      int64
	MessagesReceived  int64
	BytesSent         int64
	BytesReceived     int64
	Errors            int64
}

// MessageTypeMetrics метрики для конкретного типа пакета
type MessageTypeMetrics struct {
	Count          int64
	TotalSize      int64
	AvgSize        float64
	ProcessingTime time.Duration
}

// ErrorStatistics статистика ошибок
type ErrorStatistics struct {
	ConnectionErrors int64
	ProtocolErrors   int64
	TimeoutErrors    int64
	OtherErrors      int64

	// Последние ошибки для анализа
	RecentErrors []ErrorRecord
}

// ErrorRecord запись об ошибке
type ErrorRecord struct {
	Timestamp time.Time
	Type      string
	Message   string
	ConnID    uint64
}

const maxRecentErrors = 100

// NewNetworkMetrics создаёт новую систему метрик
func NewNetworkMetrics() *NetworkMetrics {
	return &NetworkMetrics{
		TransportMetrics: make(map[Transport]*TransportTypeMetrics),
		MessageMetrics:   make(map[protocol.PacketType]*MessageTypeMetrics),
		ErrorMetrics: ErrorStatistics{
			RecentErrors: make([]ErrorRecord, 0, maxRecentErrors),
		},
		LastUpdate: time.Now(),
	}
}

func (nm *NetworkMetrics) transportLocked(t Transport) *TransportTypeMetrics {
	m, ok := nm.TransportMetrics[t]
	if !ok {
		m = &TransportTypeMetrics{}
		nm.TransportMetrics[t] = m
	}
	return m
}

// RecordConnect учитывает новое соединение
func (nm *NetworkMetrics) RecordConnect(t Transport) {
	nm.mu.Lock()
	nm.TotalConnections++
	nm.ActiveConnections++
	nm.transportLocked(t).ActiveConnections++
	nm.LastUpdate = time.Now()
	nm.mu.Unlock()
	promConnections.Inc()
}

// RecordDisconnect учитывает закрытое соединение
func (nm *NetworkMetrics) RecordDisconnect(t Transport) {
	nm.mu.Lock()
	nm.ActiveConnections--
	nm.transportLocked(t).ActiveConnections--
	nm.LastUpdate = time.Now()
	nm.mu.Unlock()
	promConnections.Dec()
}

// RecordRejected учитывает отказ в подключении
func (nm *NetworkMetrics) RecordRejected() {
	nm.mu.Lock()
	nm.RejectedConnections++
	nm.mu.Unlock()
}

// RecordMessage записывает метрики отправленного или полученного пакета
func (nm *NetworkMetrics) RecordMessage(t Transport, packetType protocol.PacketType, size int, isOutbound bool, processingTime time.Duration) {
	direction := "in"
	if isOutbound {
		direction = "out"
	}
	promPackets.WithLabelValues(direction, packetType.String()).Inc()
	promBytes.WithLabelValues(direction).Add(float64(size))

	nm.mu.Lock()
	defer nm.mu.Unlock()

	nm.TotalMessages++
	nm.TotalBytes += int64(size)

	tm := nm.transportLocked(t)
	if isOutbound {
		tm.MessagesSent++
		tm.BytesSent += int64(size)
	} else {
		tm.MessagesReceived++
		tm.BytesReceived += int64(size)
	}

	mm, ok := nm.MessageMetrics[packetType]
	if !ok {
		mm = &MessageTypeMetrics{}
		nm.MessageMetrics[packetType] = mm
	}
	mm.Count++
	mm.TotalSize += int64(size)
	mm.AvgSize = float64(mm.TotalSize) / float64(mm.Count)
	if processingTime > 0 {
		mm.ProcessingTime = (mm.ProcessingTime + processingTime) / 2 // Скользящее среднее
	}

	nm.LastUpdate = time.Now()
}

// RecordError записывает ошибку
func (nm *NetworkMetrics) RecordError(t Transport, errorType, message string, connID uint64) {
	promErrors.WithLabelValues(errorType).Inc()

	nm.mu.Lock()
	defer nm.mu.Unlock()

	switch errorType {
	case "connection":
		nm.ErrorMetrics.ConnectionErrors++
	case "protocol":
		nm.ErrorMetrics.ProtocolErrors++
	case "timeout":
		nm.ErrorMetrics.TimeoutErrors++
	default:
		nm.ErrorMetrics.OtherErrors++
	}
	nm.transportLocked(t).Errors++

	nm.ErrorMetrics.RecentErrors = append(nm.ErrorMetrics.RecentErrors, ErrorRecord{
		Timestamp: time.Now(),
		Type:      errorType,
		Message:   message,
		ConnID:    connID,
	})
	if len(nm.ErrorMetrics.RecentErrors) > maxRecentErrors {
		nm.ErrorMetrics.RecentErrors = nm.ErrorMetrics.RecentErrors[1:]
	}
}

// RecordCorrection учитывает коррекцию позиции
func (nm *NetworkMetrics) RecordCorrection() {
	promCorrections.Inc()
}

// GetSnapshot возвращает снимок метрик для REST статуса
func (nm *NetworkMetrics) GetSnapshot() map[string]interface{} {
	nm.mu.RLock()
	defer nm.mu.RUnlock()

	transports := make(map[string]interface{}, len(nm.TransportMetrics))
	for t, m := range nm.TransportMetrics {
		transports[string(t)] = map[string]int64{
			"active":         m.ActiveConnections,
			"messages_sent":  m.MessagesSent,
			"messages_recv":  m.MessagesReceived,
			"bytes_sent":     m.BytesSent,
			"bytes_received": m.BytesReceived,
			"errors":         m.Errors,
		}
	}

	messages := make(map[string]interface{}, len(nm.MessageMetrics))
	for pt, m := range nm.MessageMetrics {
		messages[pt.String()] = map[string]interface{}{
			"count":    m.Count,
			"avg_size": m.AvgSize,
		}
	}

	return map[string]interface{}{
		"total_connections":    nm.TotalConnections,
		"active_connections":   nm.ActiveConnections,
		"rejected_connections": nm.RejectedConnections,
		"total_messages":       nm.TotalMessages,
		"total_bytes":          nm.TotalBytes,
		"transports":           transports,
		"messages":             messages,
		"errors": map[string]int64{
			"connection": nm.ErrorMetrics.ConnectionErrors,
			"protocol":   nm.ErrorMetrics.ProtocolErrors,
			"timeout":    nm.ErrorMetrics.TimeoutErrors,
			"other":      nm.ErrorMetrics.OtherErrors,
		},
		"last_update": nm.LastUpdate,
	}
}
