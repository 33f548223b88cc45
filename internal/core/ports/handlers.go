package ports

import "github.com/gin-gonic/gin"

type CommandHTTPHandler interface {
	HandleCommand(c *gin.Context)
	GetQueue(c *gin.Context)
	GetAccess(c *gin.Context)
}
