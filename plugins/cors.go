package plugins

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"github.com/weavegraph/weave"
)

func init() {
	weave.RegisterPlugin(&CorsPlugin{})
}

// CorsPlugin applies CORS headers to both the public and private routers,
// configured per-deployment under the "cors" key of the plugin config block.
type CorsPlugin struct {
	weave.BasePlugin
	config CorsPluginConfig
}

// CorsPluginConfig is the JSON shape of the plugin's "config" block.
type CorsPluginConfig struct {
	AllowedOrigins   []string `json:"allowed-origins"`
	AllowedHeaders   []string `json:"allowed-headers"`
	AllowCredentials bool     `json:"allow-credentials"`
	MaxAge           int      `json:"max-age"`
	Debug            bool     `json:"debug"`
}

// NewCorsPlugin builds a CorsPlugin directly, bypassing config-driven
// registration — useful for tests and for programmatic gateway setup.
func NewCorsPlugin(config CorsPluginConfig) *CorsPlugin {
	return &CorsPlugin{config: config}
}

func (p *CorsPlugin) ID() string {
	return "cors"
}

func (p *CorsPlugin) Configure(_ *weave.Config, data json.RawMessage) error {
	return json.Unmarshal(data, &p.config)
}

func (p *CorsPlugin) middleware(h http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   p.config.AllowedOrigins,
		AllowedHeaders:   p.config.AllowedHeaders,
		AllowCredentials: p.config.AllowCredentials,
		MaxAge:           p.config.MaxAge,
		Debug:            p.config.Debug,
	})
	if p.config.Debug {
		c.Log = log.New(logrus.StandardLogger().Writer(), "cors:", log.Lshortfile)
	}
	return c.Handler(h)
}

func (p *CorsPlugin) ApplyMiddlewarePublicMux(h http.Handler) http.Handler {
	return p.middleware(h)
}

func (p *CorsPlugin) ApplyMiddlewarePrivateMux(h http.Handler) http.Handler {
	return p.middleware(h)
}
