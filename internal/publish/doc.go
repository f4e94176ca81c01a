// Package publish reconciles deployables with the deployment folder of a server.
//
// The Model tracks every registered deployable with its publish state (none, add,
// remove, incremental, full, in-sync, published) and run state. The Controller
// performs the filesystem work on an afero.Fs: it decides whether an artifact can be
// added (doublestar patterns on the artifact name, exploded directory support),
// whether it can be removed (a previous publish record exists) and whether the
// server can be published to at all (a deployment folder is configured).
//
// A publish cycle is bracketed by PublishStart and PublishFinish and never overlaps
// another cycle of the same controller. The Publisher runs complete cycles, deriving
// a request per deployable from the cycle kind and the deployable's state:
//
//	state        full/clean   incremental
//	add          add          add
//	remove       remove       remove
//	full         full         full
//	incremental  full         incremental
//	in-sync      full         none
//	published    full         none
//
// The none request never touches the filesystem.
package publish
