package polaris

import "github.com/polaris-governance/core/internal/quota"

// The quota façade types are re-exported at the root so an embedding
// application can build QuotaRequest/LimitCallResult values without
// importing an internal package directly (§4.8: "plain value carriers
// ... the engine neither owns quota policy nor talks to the quota
// server in scope here").
type (
	QuotaServiceKey     = quota.ServiceKey
	QuotaRequest        = quota.Request
	QuotaResultInfo     = quota.ResultInfo
	QuotaResponse       = quota.Response
	QuotaResultCode     = quota.ResultCode
	LimitCallResult     = quota.LimitCallResult
	LimitCallResultType = quota.LimitCallResultType
)

const (
	QuotaResultOk      = quota.ResultOk
	QuotaResultLimited = quota.ResultLimited

	LimitCallResultOk      = quota.LimitCallResultOk
	LimitCallResultLimited = quota.LimitCallResultLimited
)
