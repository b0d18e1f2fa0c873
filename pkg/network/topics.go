package network

// Paths below are relative to the network's topic prefix.
const (
	TopicConnectionState = "/maintenance/mqttConnectionState"
	TopicReset           = "/maintenance/reset"
	TopicUptime          = "/maintenance/uptime"
	TopicRestartReason   = "/maintenance/restartReasonNukiHub"
	TopicReconnects      = "/maintenance/mqttReconnects"
	TopicMessages        = "/maintenance/mqttMessagesReceived"
	TopicLog             = "/maintenance/log"

	TopicVersion = "/info/nukiHubVersion"
	TopicBuild   = "/info/nukiHubBuild"
	TopicIP      = "/info/nukiHubIp"

	TopicLockState            = "/lock/state"
	TopicLockBinaryState      = "/lock/binaryState"
	TopicLockAction           = "/lock/action"
	TopicLockTrigger          = "/lock/trigger"
	TopicLockLastAction       = "/lock/lastLockAction"
	TopicLockCompletionStatus = "/lock/completionStatus"
	TopicLockDoorSensorState  = "/lock/doorSensorState"

	TopicBatteryLevel    = "/battery/level"
	TopicBatteryCritical = "/battery/critical"
	TopicBatteryCharging = "/battery/charging"
)

// Payloads of TopicConnectionState.
const (
	StateOnline  = "online"
	StateOffline = "offline"
)

// Replies published to TopicLockAction after an action was handled.
const (
	ReplyAck           = "ack"
	ReplyUnknownAction = "unknown_action"
	ReplyDenied        = "denied"
	ReplyError         = "error"
)

// actionIdle is the value TopicLockAction holds while no action is pending.
const actionIdle = "--"
