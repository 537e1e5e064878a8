package checkpointer

// nEpisode implements checkpointing every N episodes
type nEpisode struct {
	interval int
	object   Serializable

	// filename returns the name of the file to save the next
	// checkpoint in. Use FilenameEnumerator or FileTimer to generate
	// a fresh file per checkpoint, or a constant closure to overwrite
	// a single file.
	filename func() string
}

// NewNEpisode returns a checkpointer that saves its object every n
// episodes.
func NewNEpisode(n int, object Serializable,
	filename func() string) Checkpointer {
	return &nEpisode{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint saves the tracked object if episode falls on the
// checkpoint interval. Episodes are counted from 1.
func (n *nEpisode) Checkpoint(episode int) error {
	if episode%n.interval == 0 {
		return write(n.object, n.filename())
	}
	return nil
}
