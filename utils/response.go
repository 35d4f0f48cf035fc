package utils

import (
	"github.com/gin-gonic/gin"
)

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends a structured error response
func JSONError(c *gin.Context, status int, err error, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"error":   err.Error(),
	})
}

// JSONRejection sends an error response carrying a machine-readable reason
// code plus optional detail the client surfaces to the bidder (required
// minimum, cooldown remaining).
func JSONRejection(c *gin.Context, status int, err error, reason string, detail map[string]any) {
	body := gin.H{
		"status": status,
		"error":  err.Error(),
		"reason": reason,
	}
	for k, v := range detail {
		body[k] = v
	}
	c.JSON(status, body)
}
