// Package router sets up gin engines the way all plutoiq HTTP servers use them.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
}

// New returns an engine with panic recovery and request logging through glog.
func New() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), Logger())
	return r
}

// Logger logs every request at V(1) and failed ones as warnings.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			glog.Warningf("%s %s from %s: %d in %s %s\n", c.Request.Method, c.Request.URL.Path, c.ClientIP(), status, time.Since(start), c.Errors.String())
			return
		}
		glog.V(1).Infof("%s %s from %s: %d in %s\n", c.Request.Method, c.Request.URL.Path, c.ClientIP(), status, time.Since(start))
	}
}

// CORS allows any origin to GET and POST, preflight requests are answered directly.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
