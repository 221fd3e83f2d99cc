package kong

// Ref points at another gateway entity by id.
type Ref struct {
	ID string `json:"id"`
}

// Service is an upstream target.
type Service struct {
	ID   string   `json:"id,omitempty"`
	Name string   `json:"name"`
	URL  string   `json:"url,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

// Route matches downstream requests and forwards them to a service.
type Route struct {
	ID        string   `json:"id,omitempty"`
	Name      string   `json:"name"`
	Paths     []string `json:"paths"`
	Methods   []string `json:"methods"`
	Service   *Ref     `json:"service,omitempty"`
	StripPath bool     `json:"strip_path"`
	Tags      []string `json:"tags,omitempty"`
}

// Plugin is a route-scoped plugin instance.
type Plugin struct {
	ID      string                 `json:"id,omitempty"`
	Name    string                 `json:"name"`
	Route   *Ref                   `json:"route,omitempty"`
	Config  map[string]interface{} `json:"config,omitempty"`
	Enabled bool                   `json:"enabled"`
	Tags    []string               `json:"tags,omitempty"`
}

// Consumer is the gateway identity of a company.
type Consumer struct {
	ID       string   `json:"id,omitempty"`
	Username string   `json:"username"`
	CustomID string   `json:"custom_id"`
	Tags     []string `json:"tags,omitempty"`
}

// ACL is one group membership of a consumer.
type ACL struct {
	ID       string `json:"id"`
	Group    string `json:"group"`
	Consumer *Ref   `json:"consumer,omitempty"`
}

// page is the envelope of every paginated admin listing.
type page[T any] struct {
	Data   []T    `json:"data"`
	Next   string `json:"next"`
	Offset string `json:"offset"`
}
