package response

import "github.com/gin-gonic/gin"

// Machine-readable error kinds surfaced to agents and operators. The
// taxonomy is flat: every failure maps to exactly one kind and the caller is
// responsible for any retry.
const (
	CodeUnknownAgent      = "UNKNOWN_AGENT"
	CodeUnknownJob        = "UNKNOWN_JOB"
	CodeUnknownDevice     = "UNKNOWN_DEVICE"
	CodeInvalidCode       = "INVALID_CODE"
	CodeAlreadyUsed       = "CODE_ALREADY_USED"
	CodeExpired           = "CODE_EXPIRED"
	CodeAgentMismatch     = "AGENT_MISMATCH"
	CodeAgentOffline      = "AGENT_OFFLINE"
	CodeMissingDeviceID   = "MISSING_DEVICE_ID"
	CodeMissingArtifactID = "MISSING_ARTIFACT_ID"
	CodeMissingDevices    = "MISSING_DEVICES"
	CodeMissingCode       = "MISSING_CODE"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeInternal          = "INTERNAL"
)

type Response struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(200, Response{
		OK:   true,
		Data: data,
	})
}

func Fail(c *gin.Context, httpStatus int, code, message string) {
	c.JSON(httpStatus, Response{
		OK:      false,
		Error:   code,
		Message: message,
	})
}
