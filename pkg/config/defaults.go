package config

const (
	defaultGatewayURL     = "http://localhost:9301"
	defaultRAGURL         = "http://localhost:9305"
	defaultProxyListen    = ":9300"
	defaultCallbackListen = "127.0.0.1:9310"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Gateway: GatewayConfig{
			URL: defaultGatewayURL,
		},
		RAG: RAGConfig{
			URL: defaultRAGURL,
		},
		Auth: AuthConfig{
			CallbackListen: defaultCallbackListen,
		},
		Proxy: ProxyConfig{
			Listen: defaultProxyListen,
		},
	}
}
