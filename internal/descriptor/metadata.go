package descriptor

// EndpointMetadata is the wire shape of one endpoint in the metadata
// response consumed by running frontend clients.
type EndpointMetadata struct {
	Name         string            `json:"name"`
	Route        string            `json:"route"`
	Methods      []string          `json:"methods"`
	Params       []ParamDescriptor `json:"params"`
	ResponseType string            `json:"responseType"`
	AuthRequired bool              `json:"authRequired,omitempty"`
	Doc          string            `json:"doc,omitempty"`
}

// MetadataResponse is the body of GET /_ferro/api-metadata. It is always
// servable: before a first successful sync both slices are present and empty.
type MetadataResponse struct {
	Endpoints []EndpointMetadata `json:"endpoints"`
	Models    []ModelDescriptor  `json:"models"`
}

// Metadata converts a catalog into the runtime metadata wire shape. A nil
// catalog yields the empty fallback response.
func Metadata(c *Catalog) MetadataResponse {
	resp := MetadataResponse{
		Endpoints: []EndpointMetadata{},
		Models:    []ModelDescriptor{},
	}
	if c == nil {
		return resp
	}
	for _, ep := range c.OrderedEndpoints() {
		params := ep.Params
		if params == nil {
			params = []ParamDescriptor{}
		}
		resp.Endpoints = append(resp.Endpoints, EndpointMetadata{
			Name:         ep.Name,
			Route:        ep.Route,
			Methods:      ep.Methods,
			Params:       params,
			ResponseType: ep.ResponseType,
			AuthRequired: ep.AuthRequired,
			Doc:          ep.Doc,
		})
	}
	resp.Models = append(resp.Models, c.OrderedModels()...)
	return resp
}

// ErrorResponse is the standard envelope for HTTP error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned over HTTP.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}
