package servertype

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sort"
	"strconv"

	"overseer/internal/config"
	"overseer/internal/poller"
)

const (
	TypeGeneric = "generic"
	TypeTomcat  = "tomcat"
)

// Preset describes a server type.
type Preset struct {
	ID          string
	Description string

	// Start and Stop are the default command templates. A server configuration
	// with its own commands replaces them.
	Start []config.CommandConfig
	Stop  []config.CommandConfig

	// Required lists attributes that must be set before the server can start.
	Required []string

	// Patterns are the supported archive names, empty accepts any.
	Patterns []string
	Exploded bool

	// DeployFolder resolves the deployment folder from the attributes.
	DeployFolder func(attrs config.Attributes) (string, error)

	// Probe builds the readiness probe.
	Probe func(attrs config.Attributes) poller.Probe
}

var presets = map[string]Preset{
	TypeGeneric: {
		ID:           TypeGeneric,
		Description:  "any server started from configured commands",
		Exploded:     true,
		DeployFolder: attributeDeployFolder,
		Probe:        tcpProbe,
	},
	TypeTomcat: {
		ID:          TypeTomcat,
		Description: "Apache Tomcat servlet container, deploys to <server.home>/webapps unless server.deploy.folder is set",
		Start: []config.CommandConfig{{
			Command: `{{ .Attr "server.home" }}/bin/catalina.sh`,
			Args:    []string{`{{ if .Debug }}jpda{{ end }}`, "run"},
			Dir:     `{{ .Attr "server.home" }}`,
			Env: map[string]string{
				"CATALINA_HOME": `{{ .Attr "server.home" }}`,
				"JPDA_ADDRESS":  `{{ .AttrOr "server.debug.address" "8000" }}`,
			},
		}},
		Stop: []config.CommandConfig{{
			Command: `{{ .Attr "server.home" }}/bin/catalina.sh`,
			Args:    []string{"stop"},
			Dir:     `{{ .Attr "server.home" }}`,
			Env: map[string]string{
				"CATALINA_HOME": `{{ .Attr "server.home" }}`,
			},
		}},
		Required:     []string{config.AttrServerHome},
		Patterns:     []string{"*.war", "*.jar"},
		Exploded:     true,
		DeployFolder: webappsFolder,
		Probe:        webProbe,
	},
}

// Lookup returns the preset registered for id.
func Lookup(id string) (Preset, bool) {
	p, ok := presets[id]
	return p, ok
}

// KnownType reports whether id names a server type.
func KnownType(id string) bool {
	_, ok := presets[id]
	return ok
}

// Types returns the registered server type ids, sorted.
func Types() []string {
	ids := make([]string, 0, len(presets))
	for id := range presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func attributeDeployFolder(attrs config.Attributes) (string, error) {
	folder := attrs.String(config.AttrDeployFolder, "")
	if folder == "" {
		return "", fmt.Errorf("%s is not set", config.AttrDeployFolder)
	}
	return folder, nil
}

func webappsFolder(attrs config.Attributes) (string, error) {
	if folder := attrs.String(config.AttrDeployFolder, ""); folder != "" {
		return folder, nil
	}
	home := attrs.String(config.AttrServerHome, "")
	if home == "" {
		return "", errors.New(config.AttrServerHome + " is not set")
	}
	return filepath.Join(home, "webapps"), nil
}

func hostPort(attrs config.Attributes) string {
	return net.JoinHostPort(
		attrs.String(config.AttrServerHost, config.DefaultServerHost),
		strconv.Itoa(attrs.Int(config.AttrServerPort, config.DefaultServerPort)))
}

func tcpProbe(attrs config.Attributes) poller.Probe {
	return poller.TCPProbe(hostPort(attrs))
}

func webProbe(attrs config.Attributes) poller.Probe {
	return poller.WebPortProbe("http://" + hostPort(attrs) + "/")
}
