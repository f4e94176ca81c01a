package api

// PublishState is the synchronisation state of a deployable against its server.
type PublishState string

const (
	// PublishStateNone means no publish record exists for the deployable.
	PublishStateNone PublishState = "none"
	// PublishStateAdd means the deployable was registered and awaits its first publish.
	PublishStateAdd PublishState = "add"
	// PublishStateRemove means the deployable is scheduled for removal.
	PublishStateRemove PublishState = "remove"
	// PublishStateIncremental means the source changed since the last publish.
	PublishStateIncremental PublishState = "incremental"
	// PublishStateFull means the deployable needs a full republish.
	PublishStateFull PublishState = "full"
	// PublishStateInSync means the artifact is placed and live on a running server.
	PublishStateInSync PublishState = "in-sync"
	// PublishStatePublished means the artifact is placed but the server was not running.
	PublishStatePublished PublishState = "published"
)

// IsPlaced reports whether an artifact for the deployable currently sits in the deployment target.
func (s PublishState) IsPlaced() bool {
	return s == PublishStateInSync || s == PublishStatePublished || s == PublishStateIncremental || s == PublishStateFull
}

// RequestType is the per-deployable operation requested during a publish cycle.
type RequestType string

const (
	RequestAdd         RequestType = "add"
	RequestRemove      RequestType = "remove"
	RequestFull        RequestType = "full"
	RequestIncremental RequestType = "incremental"
	RequestNone        RequestType = "none"
)

// PublishKind is the kind of a whole publish cycle.
type PublishKind string

const (
	PublishFull        PublishKind = "full"
	PublishIncremental PublishKind = "incremental"
	PublishClean       PublishKind = "clean"
)

// ArtifactKind distinguishes packed archives from exploded directories.
type ArtifactKind string

const (
	ArtifactArchive  ArtifactKind = "archive"
	ArtifactExploded ArtifactKind = "exploded"
)
