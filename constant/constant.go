package constant

const (
	LogFormat                = "log-format"
	LogFormatJSON            = "json"
	LogFormatText            = "text"
	LogLevel                 = "log-level"
	LogLevelDebug            = "debug"
	LogLevelInfo             = "info"
	LogLevelWarn             = "warn"
	LogLevelError            = "error"
	Port                     = "port"
	GRPCPort                 = "grpc-port"
	OpenTelemetryEnabled     = "opentelemetry-enabled"
	OpenTelemetryEndpoint    = "opentelemetry-endpoint"
	OpenTelemetrySampleRatio = "opentelemetry-sample-ratio"
	StorageType              = "storage-type"
	StorageTypeInMemory      = "inmemory"
	StorageTypeFile          = "file"
	StorageTypeSQLite        = "sqlite"
	StorageTypeConfigMap     = "configmap"
	ConfigMapName            = "configmap-name"
	FilePath                 = "file-path"
	SQLitePath               = "sqlite-path"
	Quota                    = "quota"
	Key                      = "key"
	DefaultGroup             = "default-group"
	NotificationEnabled      = "notification-enabled"
	NotificationType         = "notification-type"
	NotificationTypeLog      = "log"
)

// GroupKey is the persistence key the group is stored under.
const GroupKey = "group"
