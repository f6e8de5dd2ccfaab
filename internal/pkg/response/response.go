package response

import "github.com/gin-gonic/gin"

// Error codes surfaced by the core. Handlers map module sentinel errors onto
// these; the envelope shape is shared by every endpoint.
const (
	CodeNotAvailable      = "NOT_AVAILABLE"
	CodeInvalidInterval   = "INVALID_INTERVAL"
	CodeDuplicateRoom     = "DUPLICATE_ROOM"
	CodeInvalidRate       = "INVALID_RATE"
	CodeOverpayment       = "OVERPAYMENT"
	CodeInsufficientPaid  = "INSUFFICIENT_PAID"
	CodeReceiptRequired   = "RECEIPT_REQUIRED"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeGatewayFailure    = "GATEWAY_FAILURE"
	CodeUnauthorised      = "UNAUTHORISED"
	CodeNotFound          = "NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInternal          = "INTERNAL_SERVER_ERROR"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
