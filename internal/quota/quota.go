// Package quota holds the plain value types the engine exchanges with
// a quota server — a façade only. This module neither owns quota
// policy nor talks to a quota server; it exists so ChooseInstance
// results and call outcomes can be reported in the shape the wider SDK
// expects (§4.8). Grounded on
// original_source/polaris/quota/quota_model.cpp's field shapes,
// flattened from its builder/impl indirection into plain Go structs —
// QuotaLane's domain DTOs (internal/model) confirm the flat-struct
// convention this corpus uses for wire-adjacent value types.
package quota

import "time"

// ResultCode mirrors the original's QuotaResultCode.
type ResultCode int

const (
	ResultOk ResultCode = iota
	ResultLimited
)

// ServiceKey identifies a service by namespace and name.
type ServiceKey struct {
	Namespace string
	Name      string
}

// Request is a quota acquisition request (§4.8 QuotaRequest).
type Request struct {
	ServiceKey    ServiceKey
	Subset        map[string]string
	Labels        map[string]string
	AcquireAmount int
	Timeout       time.Duration
}

// ResultInfo carries the quota accounting returned alongside a
// Response (§4.8 QuotaResponse.info).
type ResultInfo struct {
	AllQuota  int64
	Duration  time.Duration
	LeftQuota int64
}

// Response is the result of a quota acquisition attempt (§4.8
// QuotaResponse).
type Response struct {
	ResultCode ResultCode
	WaitTime   time.Duration
	Info       ResultInfo
}

// LimitCallResultType mirrors the original's LimitCallResultType.
type LimitCallResultType int

const (
	LimitCallResultOk LimitCallResultType = iota
	LimitCallResultLimited
)

// LimitCallResult reports the outcome of a call governed by a quota
// decision, for feedback to the quota server (§4.8 LimitCallResult).
type LimitCallResult struct {
	ServiceKey   ServiceKey
	Subset       map[string]string
	Labels       map[string]string
	ResultType   LimitCallResultType
	ResponseTime time.Duration
	ResponseCode int
}
