package domain

import "fmt"

// DataFetchError reports a failed load of a wage table or the county
// geometry: transport failure, non-success status, or an undecodable body.
type DataFetchError struct {
	Resource string // e.g. "wage table 15-1252", "county geometry"
	Status   int    // HTTP status when the server answered, 0 otherwise
	Err      error
}

func (e *DataFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("load %s: status %d: %v", e.Resource, e.Status, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Resource, e.Err)
}

func (e *DataFetchError) Unwrap() error { return e.Err }

// ConfigurationError reports a required credential or setting that is
// missing. It disables the dependent surface, not the classification core.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Setting, e.Reason)
}
