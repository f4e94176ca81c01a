package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"overseer/internal/api"
	"overseer/pkg/logging"
)

// ControllerOptions configures a filesystem Controller.
type ControllerOptions struct {
	Server string

	// Fs holds both the deployable sources and the deployment folder.
	Fs afero.Fs

	// Patterns are doublestar patterns matched against the artifact base name,
	// e.g. "*.war". Empty accepts every name.
	Patterns []string

	// Exploded allows deploying directories.
	Exploded bool

	// DeployFolder resolves the deployment folder. An error or an empty folder means
	// the target is not configured.
	DeployFolder func() (string, error)

	// ServerState reports the lifecycle state used to pick IN_SYNC or PUBLISHED.
	ServerState func() api.ServerState

	// Model is swept for REMOVE entries at the end of every cycle.
	Model *Model
}

// Controller reconciles deployables against a deployment folder on a filesystem.
type Controller struct {
	opts ControllerOptions

	mu      sync.Mutex
	cycle   api.PublishKind
	inCycle bool
	placed  map[string]string
}

// NewController creates a filesystem publish controller.
func NewController(opts ControllerOptions) *Controller {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.ServerState == nil {
		opts.ServerState = func() api.ServerState { return api.StateStopped }
	}
	return &Controller{
		opts:   opts,
		placed: make(map[string]string),
	}
}

// ArtifactKind reports whether ref points to an archive or an exploded directory.
func (c *Controller) ArtifactKind(ref Reference) (api.ArtifactKind, error) {
	info, err := c.opts.Fs.Stat(ref.Path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return api.ArtifactExploded, nil
	}
	return api.ArtifactArchive, nil
}

// CanAdd reports whether ref can be deployed to this target.
func (c *Controller) CanAdd(ref Reference) api.Status {
	kind, err := c.ArtifactKind(ref)
	if err != nil {
		return api.ErrorStatus(api.NewPublishError(ref.Label, "add", fmt.Errorf("cannot read %s: %w", ref.Path, err)))
	}
	if kind == api.ArtifactExploded && !c.opts.Exploded {
		return api.ErrorStatus(api.NewPublishError(ref.Label, "add",
			fmt.Errorf("server %s does not support exploded deployments", c.opts.Server)))
	}
	if kind == api.ArtifactArchive && !c.supported(ref.Path) {
		return api.ErrorStatus(api.NewPublishError(ref.Label, "add",
			fmt.Errorf("%s is not a supported artifact type (%v)", filepath.Base(ref.Path), c.opts.Patterns)))
	}
	if owner, taken := c.ownerOf(filepath.Base(ref.Path)); taken && owner != ref.Label {
		return api.ErrorStatus(api.NewPublishError(ref.Label, "add",
			fmt.Errorf("%s is already deployed to server %s by %s", filepath.Base(ref.Path), c.opts.Server, owner)))
	}
	return api.OKStatus()
}

// ownerOf returns the label whose artifact is placed under name.
func (c *Controller) ownerOf(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for label, placed := range c.placed {
		if placed == "/"+name {
			return label, true
		}
	}
	return "", false
}

// CanRemove reports whether ref has a publish record to remove.
func (c *Controller) CanRemove(ref Reference) api.Status {
	c.mu.Lock()
	_, ok := c.placed[ref.Label]
	c.mu.Unlock()
	if !ok {
		return api.ErrorStatus(api.NewPublishError(ref.Label, "remove", errors.New("deployable was never published")))
	}
	return api.OKStatus()
}

// CanPublish reports whether the deployment folder is configured.
func (c *Controller) CanPublish() api.Status {
	if _, err := c.deployFolder(); err != nil {
		return api.ErrorStatus(err)
	}
	return api.OKStatus()
}

// IsPlaced reports whether an artifact for label sits in the deployment folder.
func (c *Controller) IsPlaced(label string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.placed[label]
	return ok
}

// PublishStart opens a publish cycle. Cycles never overlap. A CLEAN cycle first
// deletes every artifact this controller placed.
func (c *Controller) PublishStart(kind api.PublishKind) error {
	folder, err := c.deployFolder()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inCycle {
		return api.NewPublishError("", "start", fmt.Errorf("a %s publish is already in progress on server %s", c.cycle, c.opts.Server))
	}

	if kind == api.PublishClean {
		target := c.target(folder)
		for label, name := range c.placed {
			if err := target.RemoveAll(name); err != nil {
				return api.NewPublishError(label, "clean", err)
			}
			delete(c.placed, label)
		}
		logging.Info("Publish", "Cleaned deployment folder %s of server %s", folder, c.opts.Server)
	}

	c.inCycle = true
	c.cycle = kind
	logging.Debug("Publish", "Started %s publish on server %s", kind, c.opts.Server)
	return nil
}

// PublishFinish closes the cycle and sweeps deployables left in REMOVE.
func (c *Controller) PublishFinish(kind api.PublishKind) error {
	c.mu.Lock()
	if !c.inCycle {
		c.mu.Unlock()
		return api.NewPublishError("", "finish", fmt.Errorf("no publish in progress on server %s", c.opts.Server))
	}
	c.inCycle = false
	c.mu.Unlock()

	if c.opts.Model != nil {
		if swept := c.opts.Model.Sweep(); len(swept) > 0 {
			logging.Debug("Publish", "Swept removed deployables %v on server %s", swept, c.opts.Server)
		}
	}
	logging.Debug("Publish", "Finished %s publish on server %s", kind, c.opts.Server)
	return nil
}

// PublishModule applies one request to ref and returns the resulting publish state.
// NONE never touches the filesystem.
func (c *Controller) PublishModule(ctx context.Context, ref Reference, req api.RequestType, current api.PublishState) (api.PublishState, error) {
	switch req {
	case api.RequestNone:
		return current, nil
	case api.RequestRemove:
		return c.remove(ref)
	case api.RequestAdd, api.RequestFull, api.RequestIncremental:
		return c.place(ctx, ref, req)
	default:
		return current, api.NewPublishError(ref.Label, string(req), errors.New("unknown request type"))
	}
}

func (c *Controller) place(ctx context.Context, ref Reference, req api.RequestType) (api.PublishState, error) {
	if st := c.CanAdd(ref); !st.IsOK() {
		return api.PublishStateNone, st.Err
	}
	folder, err := c.deployFolder()
	if err != nil {
		return api.PublishStateNone, err
	}
	kind, _ := c.ArtifactKind(ref)
	name := filepath.Base(ref.Path)
	target := c.target(folder)

	if err := target.MkdirAll("/", 0o755); err != nil {
		return api.PublishStateNone, api.NewPublishError(ref.Label, string(req), err)
	}

	switch {
	case kind == api.ArtifactArchive:
		err = copyFile(ctx, c.opts.Fs, ref.Path, target, "/"+name)
	case req == api.RequestIncremental:
		err = copyTree(ctx, c.opts.Fs, ref.Path, target, "/"+name, true)
	default:
		if rmErr := target.RemoveAll("/" + name); rmErr != nil {
			return api.PublishStateNone, api.NewPublishError(ref.Label, string(req), rmErr)
		}
		err = copyTree(ctx, c.opts.Fs, ref.Path, target, "/"+name, false)
	}
	if err != nil {
		return api.PublishStateNone, api.NewPublishError(ref.Label, string(req), err)
	}

	c.mu.Lock()
	c.placed[ref.Label] = "/" + name
	c.mu.Unlock()

	logging.Info("Publish", "Published %s to %s on server %s", ref.Label, path.Join(folder, name), c.opts.Server)
	if c.opts.ServerState() == api.StateStarted {
		return api.PublishStateInSync, nil
	}
	return api.PublishStatePublished, nil
}

func (c *Controller) remove(ref Reference) (api.PublishState, error) {
	c.mu.Lock()
	name, ok := c.placed[ref.Label]
	c.mu.Unlock()
	if !ok {
		return api.PublishStateRemove, nil
	}

	folder, err := c.deployFolder()
	if err != nil {
		return api.PublishStateRemove, err
	}
	if err := c.target(folder).RemoveAll(name); err != nil {
		return api.PublishStateRemove, api.NewPublishError(ref.Label, "remove", err)
	}

	c.mu.Lock()
	delete(c.placed, ref.Label)
	c.mu.Unlock()

	logging.Info("Publish", "Removed %s from server %s", ref.Label, c.opts.Server)
	return api.PublishStateRemove, nil
}

func (c *Controller) deployFolder() (string, error) {
	if c.opts.DeployFolder == nil {
		return "", api.NewPublishError("", "configure", fmt.Errorf("server %s has no deployment folder", c.opts.Server))
	}
	folder, err := c.opts.DeployFolder()
	if err != nil {
		return "", api.NewPublishError("", "configure", err)
	}
	if folder == "" {
		return "", api.NewPublishError("", "configure", fmt.Errorf("server %s has no deployment folder", c.opts.Server))
	}
	return folder, nil
}

// target confines writes to the deployment folder.
func (c *Controller) target(folder string) afero.Fs {
	return afero.NewBasePathFs(c.opts.Fs, folder)
}

func (c *Controller) supported(p string) bool {
	if len(c.opts.Patterns) == 0 {
		return true
	}
	name := filepath.Base(p)
	for _, pattern := range c.opts.Patterns {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func copyFile(ctx context.Context, srcFs afero.Fs, src string, dstFs afero.Fs, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := srcFs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := dstFs.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyTree copies the directory src to dst. With onlyChanged, files whose size and
// modification time match the destination are skipped.
func copyTree(ctx context.Context, srcFs afero.Fs, src string, dstFs afero.Fs, dst string, onlyChanged bool) error {
	return afero.Walk(srcFs, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := path.Join(dst, filepath.ToSlash(rel))
		if info.IsDir() {
			return dstFs.MkdirAll(target, 0o755)
		}
		if onlyChanged {
			if existing, err := dstFs.Stat(target); err == nil &&
				existing.Size() == info.Size() && !existing.ModTime().Before(info.ModTime()) {
				return nil
			}
		}
		return copyFile(ctx, srcFs, p, dstFs, target)
	})
}
