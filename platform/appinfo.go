package platform

// AppInfo describes the host application. It is exposed to bootstrap
// scripts as the _appInfo global.
type AppInfo struct {
	Name               string `json:"name"`
	Version            string `json:"version"`
	Application        string `json:"application"`
	ApplicationVersion string `json:"applicationVersion"`
	Locale             string `json:"locale"`
}
