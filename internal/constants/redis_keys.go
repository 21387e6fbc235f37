package constants

// Redis key layout: app:{module}:{entity}[:{id}]
const (
	AppPrefix = "app"

	FileModulePrefix     = "file"
	SettingsModulePrefix = "settings"
	NLPModulePrefix      = "nlp"

	EntityDedupSet  = "dedup_set"
	EntityMD5ToUUID = "md5_to_uuid"
	EntityVector    = "vector"
	EntityCurrent   = "current"

	// KeyFileMD5Set holds the MD5 of every accepted upload (SET).
	// app:file:dedup_set
	KeyFileMD5Set = AppPrefix + ":" + FileModulePrefix + ":" + EntityDedupSet

	// KeyFileMD5ToDocumentID maps an upload MD5 to its document ID (STRING).
	// app:file:md5_to_uuid:{md5}
	KeyFileMD5ToDocumentID = AppPrefix + ":" + FileModulePrefix + ":" + EntityMD5ToUUID + ":%s"

	// KeyExtractionSettings caches the settings row as JSON (STRING).
	// app:settings:current
	KeyExtractionSettings = AppPrefix + ":" + SettingsModulePrefix + ":" + EntityCurrent

	// KeyEmbeddingVector caches one embedding (STRING, packed float32).
	// app:nlp:vector:{namespace}:{sha1}, the argument being "{namespace}:{sha1}"
	KeyEmbeddingVector = AppPrefix + ":" + NLPModulePrefix + ":" + EntityVector + ":%s"
)
