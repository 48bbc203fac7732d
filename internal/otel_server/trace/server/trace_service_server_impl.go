package server

import (
	"context"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/db/write_buffer"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/event/translator"
	"github.com/NikushaDevashvili/observa-api-sub002/internal/metrics"
	protoTrace "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"
)

// TraceServiceServerImpl accepts OTLP trace exports from OpenTelemetry
// instrumented applications and feeds them into the canonical event pipeline
// through a write buffer.
type TraceServiceServerImpl struct {
	protoTrace.UnimplementedTraceServiceServer
	translator  *translator.Translator
	writeBuffer write_buffer.EventWriteBuffer
	logger      *zap.Logger
}

func NewTraceServiceServerImpl(
	logger *zap.Logger,
	eventTranslator *translator.Translator,
	writeBuffer write_buffer.EventWriteBuffer,
) TraceServiceServerImpl {
	logger.Info("Creating new TraceServiceServerImpl")
	return TraceServiceServerImpl{
		logger:      logger,
		translator:  eventTranslator,
		writeBuffer: writeBuffer,
	}
}

func (tss TraceServiceServerImpl) Export(
	ctx context.Context,
	req *protoTrace.ExportTraceServiceRequest,
) (*protoTrace.ExportTraceServiceResponse, error) {
	for _, resourceSpan := range req.ResourceSpans {
		events := tss.translator.TranslateResourceSpans(resourceSpan)
		if len(events) == 0 {
			continue
		}
		metrics.EventsIngested.WithLabelValues("otlp").Add(float64(len(events)))
		tss.writeBuffer.WriteToBuffer(events)
	}

	return &protoTrace.ExportTraceServiceResponse{}, nil
}
