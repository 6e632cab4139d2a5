package engine

import "github.com/ordlayer/ordindex/internal/envelope"

// InscribeEntry is emitted once, synchronously, the moment an inscription
// is assigned its final number and resting place.
type InscribeEntry struct {
	ID            int64
	InscriptionID string
	Inscription   envelope.Inscription
	Txid          string
	Vout          uint32
	ToAddress     string
	Unbound       bool
	Height        int64
	Timestamp     uint32
}

// TransferEntry is emitted every time a previously-tracked inscription
// moves to a new output.
type TransferEntry struct {
	InscriptionID string
	FromOutput    string
	FromOffset    uint64
	To            string
	Txid          string
	Vout          uint32
	Offset        uint64
	Height        int64
	Timestamp     uint32
}

// InscribeHandler and TransferHandler are invoked synchronously, in
// registration order, during replay. They must not mutate engine state.
type InscribeHandler func(InscribeEntry)
type TransferHandler func(TransferEntry)

// RegisterInscribeHandler appends a callback to the inscribe registry.
func (e *Engine) RegisterInscribeHandler(h InscribeHandler) {
	e.inscribeHandlers = append(e.inscribeHandlers, h)
}

// RegisterTransferHandler appends a callback to the transfer registry.
func (e *Engine) RegisterTransferHandler(h TransferHandler) {
	e.transferHandlers = append(e.transferHandlers, h)
}

func (e *Engine) emitInscribe(entry InscribeEntry) {
	for _, h := range e.inscribeHandlers {
		h(entry)
	}
}

func (e *Engine) emitTransfer(entry TransferEntry) {
	for _, h := range e.transferHandlers {
		h(entry)
	}
}
