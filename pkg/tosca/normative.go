package tosca

import "sort"

// builtinNode describes a normative node type.
type builtinNode struct {
	parent       string
	requirements []string
	capabilities map[string]string
	scalars      map[string]ScalarKind
}

// builtinNodeTypes holds the Simple Profile 1.0 through 1.3 node types and the
// NFV profile types. The 1.1+ Storage.* names coexist with the 1.0 ones.
var builtinNodeTypes = map[string]builtinNode{
	"tosca.nodes.Root": {
		requirements: []string{"dependency"},
		capabilities: map[string]string{"feature": "tosca.capabilities.Node"},
	},
	"tosca.nodes.Compute": {
		parent:       "tosca.nodes.Root",
		requirements: []string{"local_storage"},
		capabilities: map[string]string{
			"host":     "tosca.capabilities.Container",
			"endpoint": "tosca.capabilities.Endpoint.Admin",
			"os":       "tosca.capabilities.OperatingSystem",
			"scalable": "tosca.capabilities.Scalable",
			"binding":  "tosca.capabilities.network.Bindable",
		},
	},
	"tosca.nodes.SoftwareComponent": {
		parent:       "tosca.nodes.Root",
		requirements: []string{"host"},
	},
	"tosca.nodes.WebServer": {
		parent:       "tosca.nodes.SoftwareComponent",
		capabilities: map[string]string{"data_endpoint": "tosca.capabilities.Endpoint", "admin_endpoint": "tosca.capabilities.Endpoint.Admin", "host": "tosca.capabilities.Container"},
	},
	"tosca.nodes.WebApplication": {
		parent:       "tosca.nodes.Root",
		requirements: []string{"host"},
		capabilities: map[string]string{"app_endpoint": "tosca.capabilities.Endpoint"},
	},
	"tosca.nodes.DBMS": {
		parent:       "tosca.nodes.SoftwareComponent",
		capabilities: map[string]string{"host": "tosca.capabilities.Container"},
	},
	"tosca.nodes.Database": {
		parent:       "tosca.nodes.Root",
		requirements: []string{"host"},
		capabilities: map[string]string{"database_endpoint": "tosca.capabilities.Endpoint.Database"},
	},
	"tosca.nodes.ObjectStorage": {
		parent:       "tosca.nodes.Root",
		capabilities: map[string]string{"storage_endpoint": "tosca.capabilities.Endpoint"},
		scalars:      map[string]ScalarKind{"size": ScalarSize, "maxsize": ScalarSize},
	},
	"tosca.nodes.BlockStorage": {
		parent:       "tosca.nodes.Root",
		capabilities: map[string]string{"attachment": "tosca.capabilities.Attachment"},
		scalars:      map[string]ScalarKind{"size": ScalarSize},
	},
	"tosca.nodes.Abstract.Compute": {
		parent:       "tosca.nodes.Root",
		capabilities: map[string]string{"host": "tosca.capabilities.Compute"},
	},
	"tosca.nodes.Abstract.Storage": {
		parent:  "tosca.nodes.Root",
		scalars: map[string]ScalarKind{"size": ScalarSize},
	},
	"tosca.nodes.Storage.ObjectStorage": {
		parent:       "tosca.nodes.Abstract.Storage",
		capabilities: map[string]string{"storage_endpoint": "tosca.capabilities.Endpoint"},
		scalars:      map[string]ScalarKind{"maxsize": ScalarSize},
	},
	"tosca.nodes.Storage.BlockStorage": {
		parent:       "tosca.nodes.Abstract.Storage",
		capabilities: map[string]string{"attachment": "tosca.capabilities.Attachment"},
	},
	"tosca.nodes.Container.Runtime": {
		parent:       "tosca.nodes.SoftwareComponent",
		capabilities: map[string]string{"host": "tosca.capabilities.Container", "scalable": "tosca.capabilities.Scalable"},
	},
	"tosca.nodes.Container.Application": {
		parent:       "tosca.nodes.Root",
		requirements: []string{"host"},
	},
	"tosca.nodes.LoadBalancer": {
		parent:       "tosca.nodes.Root",
		requirements: []string{"application"},
		capabilities: map[string]string{"client": "tosca.capabilities.Endpoint.Public"},
	},
	"tosca.nodes.network.Network": {
		parent:       "tosca.nodes.Root",
		capabilities: map[string]string{"link": "tosca.capabilities.network.Linkable"},
	},
	"tosca.nodes.network.Port": {
		parent:       "tosca.nodes.Root",
		requirements: []string{"link", "binding"},
	},
	"tosca.nodes.nfv.VNF": {
		parent:       "tosca.nodes.Root",
		requirements: []string{"virtualLink"},
		capabilities: map[string]string{"forwarder": "tosca.capabilities.nfv.Forwarder"},
	},
	"tosca.nodes.nfv.VDU": {
		parent:       "tosca.nodes.Compute",
		requirements: []string{"high_availability"},
		capabilities: map[string]string{
			"virtualbinding":       "tosca.capabilities.nfv.VirtualBindable",
			"monitoring_parameter": "tosca.capabilities.nfv.Metric",
		},
	},
	"tosca.nodes.nfv.CP": {
		parent:       "tosca.nodes.network.Port",
		requirements: []string{"virtualLink", "virtualBinding", "virtual_link", "virtual_binding"},
		capabilities: map[string]string{"forwarder": "tosca.capabilities.nfv.Forwarder"},
	},
	"tosca.nodes.nfv.VL": {
		parent:       "tosca.nodes.network.Network",
		capabilities: map[string]string{"virtual_linkable": "tosca.capabilities.nfv.VirtualLinkable"},
	},
	"tosca.nodes.nfv.VL.ELine": {parent: "tosca.nodes.nfv.VL"},
	"tosca.nodes.nfv.VL.ELAN":  {parent: "tosca.nodes.nfv.VL"},
	"tosca.nodes.nfv.VL.ETree": {parent: "tosca.nodes.nfv.VL"},
	"tosca.nodes.nfv.FP": {
		parent:       "tosca.nodes.Root",
		requirements: []string{"forwarder"},
	},
}

// builtinCapabilityTypes maps capability types to their parent.
var builtinCapabilityTypes = map[string]string{
	"tosca.capabilities.Root":                 "",
	"tosca.capabilities.Node":                 "tosca.capabilities.Root",
	"tosca.capabilities.Compute":              "tosca.capabilities.Root",
	"tosca.capabilities.Container":            "tosca.capabilities.Root",
	"tosca.capabilities.Endpoint":             "tosca.capabilities.Root",
	"tosca.capabilities.Endpoint.Public":      "tosca.capabilities.Endpoint",
	"tosca.capabilities.Endpoint.Admin":       "tosca.capabilities.Endpoint",
	"tosca.capabilities.Endpoint.Database":    "tosca.capabilities.Endpoint",
	"tosca.capabilities.Attachment":           "tosca.capabilities.Root",
	"tosca.capabilities.Storage":              "tosca.capabilities.Root",
	"tosca.capabilities.OperatingSystem":      "tosca.capabilities.Root",
	"tosca.capabilities.Scalable":             "tosca.capabilities.Root",
	"tosca.capabilities.network.Bindable":     "tosca.capabilities.Node",
	"tosca.capabilities.network.Linkable":     "tosca.capabilities.Node",
	"tosca.capabilities.nfv.VirtualBindable":  "tosca.capabilities.Node",
	"tosca.capabilities.nfv.VirtualLinkable":  "tosca.capabilities.Node",
	"tosca.capabilities.nfv.Forwarder":        "tosca.capabilities.Root",
	"tosca.capabilities.nfv.Metric":           "tosca.capabilities.Endpoint",
	"tosca.capabilities.nfv.VirtualCompute":   "tosca.capabilities.Root",
	"tosca.capabilities.nfv.VirtualStorage":   "tosca.capabilities.Root",
	"tosca.capabilities.nfv.HA":               "tosca.capabilities.Root",
	"tosca.capabilities.nfv.HA.ActiveActive":  "tosca.capabilities.nfv.HA",
	"tosca.capabilities.nfv.HA.ActivePassive": "tosca.capabilities.nfv.HA",
}

// builtinCapabilityScalars lists scalar-unit properties of capability types.
var builtinCapabilityScalars = map[string]map[string]ScalarKind{
	"tosca.capabilities.Compute": {
		"mem_size":      ScalarSize,
		"disk_size":     ScalarSize,
		"cpu_frequency": ScalarFrequency,
	},
	"tosca.capabilities.Container": {
		"mem_size":      ScalarSize,
		"disk_size":     ScalarSize,
		"cpu_frequency": ScalarFrequency,
	},
}

var builtinRelationshipTypes = map[string]string{
	"tosca.relationships.Root":               "",
	"tosca.relationships.DependsOn":          "tosca.relationships.Root",
	"tosca.relationships.HostedOn":           "tosca.relationships.Root",
	"tosca.relationships.ConnectsTo":         "tosca.relationships.Root",
	"tosca.relationships.AttachesTo":         "tosca.relationships.Root",
	"tosca.relationships.RoutesTo":           "tosca.relationships.ConnectsTo",
	"tosca.relationships.network.LinksTo":    "tosca.relationships.DependsOn",
	"tosca.relationships.network.BindsTo":    "tosca.relationships.DependsOn",
	"tosca.relationships.nfv.VirtualBindsTo": "tosca.relationships.DependsOn",
	"tosca.relationships.nfv.VirtualLinksTo": "tosca.relationships.DependsOn",
	"tosca.relationships.nfv.ForwardsTo":     "tosca.relationships.Root",
	"tosca.relationships.nfv.Monitor":        "tosca.relationships.ConnectsTo",
}

var builtinGroupTypes = map[string]string{
	"tosca.groups.Root":      "",
	"tosca.groups.nfv.VNFFG": "tosca.groups.Root",
	"tosca.groups.Placement": "tosca.groups.Root",
}

// vnffgGroupType is the NFV forwarding graph group type.
const vnffgGroupType = "tosca.groups.nfv.VNFFG"

// Recognized tosca_definitions_version values.
var definitionsVersions = map[string]bool{
	"tosca_simple_yaml_1_0":              true,
	"tosca_simple_yaml_1_1":              true,
	"tosca_simple_yaml_1_2":              true,
	"tosca_simple_yaml_1_3":              true,
	"tosca_simple_profile_for_nfv_1_0_0": true,
	"tosca_simple_profile_for_nfv_1_0":   true,
}

// DefinitionsVersions returns the recognized tosca_definitions_version values.
func DefinitionsVersions() []string {
	out := make([]string, 0, len(definitionsVersions))
	for v := range definitionsVersions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// wellKnownImports are profile documents whose types are built in.
var wellKnownImports = map[string]bool{
	"tosca-simple-profile-1.0/tosca-simple-profile-1.0.yaml": true,
	"tosca_simple_profile_1_0.yaml":                          true,
	"tosca_definition_1_0.yaml":                              true,
	"tosca-nfv-definitions.yaml":                             true,
	"tosca_simple_profile_for_nfv_1_0_0.yaml":                true,
	"tosca_simple_profile_for_nfv_1_0_0":                     true,
	"tosca_simple_profile_for_nfv_1_0":                       true,
}
