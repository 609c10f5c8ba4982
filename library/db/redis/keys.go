package redis

const (
	keyPrefix = "texpad/"

	// KeyPrefixProject prefixes cached project snapshots.
	KeyPrefixProject = keyPrefix + "projects/"
	// KeyPrefixFileProject prefixes the file id to project id index.
	KeyPrefixFileProject = keyPrefix + "file_project/"
	// KeyProjectList is the cached project list.
	KeyProjectList = keyPrefix + "project_list"
)
