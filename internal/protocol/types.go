// Package protocol implements the XML wire format spoken by volunteer
// computing clients and upstream project schedulers. The gateway is
// indistinguishable on the wire from an upstream to the device, and from a
// device to the upstream, so the same shapes serve both directions.
package protocol

// HostInfo is the device's self-description embedded in every request.
type HostInfo struct {
	OSName    string `xml:"os_name"`
	OSVersion string `xml:"os_version"`
	HostCPID  string `xml:"host_cpid"`
}

// ResultState is a device's report about one previously assigned result.
type ResultState struct {
	Name  string `xml:"name"`
	State int64  `xml:"state"`
}

// SchedulerRequest is the device-side scheduler contact body. Only the
// fields the gateway acts on are mapped; the raw bytes are what gets
// forwarded upstream.
type SchedulerRequest struct {
	Results  []ResultState `xml:"result"`
	HostInfo HostInfo      `xml:"host_info"`
}

// SchedulerWorkUnit describes one workunit in an upstream reply. Upstream
// schedulers may omit any of the resource fields; they decode as zero.
type SchedulerWorkUnit struct {
	Name           string  `xml:"name"`
	AppName        string  `xml:"app_name"`
	RscFpopsEst    float64 `xml:"rsc_fpops_est"`
	RscFpopsBound  float64 `xml:"rsc_fpops_bound"`
	RscMemoryBound float64 `xml:"rsc_memory_bound"`
	RscDiskBound   float64 `xml:"rsc_disk_bound"`
}

// SchedulerResult is one concrete task instance; WUName links it back to
// its workunit descriptor.
type SchedulerResult struct {
	WUName     string `xml:"wu_name"`
	Name       string `xml:"name"`
	Platform   string `xml:"platform"`
	VersionNum int64  `xml:"version_num"`
	PlanClass  string `xml:"plan_class"`
}

type SchedulerApp struct {
	Name             string `xml:"name"`
	UserFriendlyName string `xml:"user_friendly_name"`
}

type SchedulerAppVersion struct {
	AppName    string `xml:"app_name"`
	VersionNum int64  `xml:"version_num"`
	Platform   string `xml:"platform"`
	PlanClass  string `xml:"plan_class"`
}

// SchedulerReply is the upstream reply as far as correlation is concerned.
// Every section may be empty.
type SchedulerReply struct {
	WorkUnits   []SchedulerWorkUnit   `xml:"workunit"`
	Results     []SchedulerResult     `xml:"result"`
	Apps        []SchedulerApp        `xml:"app"`
	AppVersions []SchedulerAppVersion `xml:"app_version"`
}

// AccountRequest is the account-manager contact body (rpc.php).
type AccountRequest struct {
	Name     string   `xml:"name"`
	HostInfo HostInfo `xml:"host_info"`
}

// Account is one per-project entry in the account-manager reply. Detach is
// 1 exactly when ResourceShare is 0, telling the device to drop the project.
type Account struct {
	URL           string `xml:"url"`
	URLSignature  string `xml:"url_signature"`
	Authenticator string `xml:"authenticator"`
	ResourceShare int    `xml:"resource_share"`
	Detach        int    `xml:"detach"`
}

// AccountReply is rendered under the acct_mgr_reply root.
type AccountReply struct {
	Name       string    `xml:"name"`
	SigningKey string    `xml:"signing_key"`
	Accounts   []Account `xml:"account"`
}

// ProjectConfig is the static descriptor served to new devices at
// get_project_config.php. The three trailing fields are presence flags;
// the client only checks that the element exists.
type ProjectConfig struct {
	Name                          string `xml:"name"`
	MinPasswdLength               int    `xml:"min_passwd_length"`
	AccountManager                string `xml:"account_manager"`
	UsesUsername                  string `xml:"uses_username"`
	ClientAccountCreationDisabled string `xml:"client_account_creation_disabled"`
}
