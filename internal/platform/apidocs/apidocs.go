package apidocs

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

//go:embed openapi.yaml
var document []byte

const DocPath = "/openapi.yaml"

// Document returns the embedded OpenAPI document.
func Document() []byte { return document }

// Register serves the raw document and, when withUI is set, the Swagger UI at /swagger/index.html.
func Register(r gin.IRoutes, withUI bool) {
	// GET /openapi.yaml
	r.GET(DocPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml; charset=utf-8", document)
	})
	if withUI {
		// GET /swagger/*any
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL(DocPath)))
	}
}
