package ctxutil

import "context"

type traceDataKey struct{}

// TraceData correlates a request with its span and the caller's request id.
type TraceData struct {
	TraceID   string
	RequestID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}

// LogFields flattens the trace and request identity on ctx into logger
// key/value pairs. Empty values are left out.
func LogFields(ctx context.Context) []interface{} {
	var fields []interface{}
	if td := GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			fields = append(fields, "trace_id", td.TraceID)
		}
		if td.RequestID != "" {
			fields = append(fields, "request_id", td.RequestID)
		}
	}
	if rd := GetRequestData(ctx); rd != nil {
		fields = append(fields, "user_id", rd.UserID.String())
	}
	return fields
}
