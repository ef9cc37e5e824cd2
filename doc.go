// Package litestore provides a personal cloud storage core: a per-user
// virtual folder tree kept in a relational database, with file bytes held
// in an object store under derived content paths.
//
// # Key Components
//
//   - FileService: tree operations (upload, create folder, list, delete,
//     trash, move, copy) and the content store calls that go with them
//   - LinkService: share links with expiry, password and download limits
//   - AccountService: sign up and login
//   - TreeRepo, LinkRepo, UserRepo: metadata persistence (PostgreSQL, SQLite)
//   - ContentStore: object storage (S3 compatible services, local filesystem)
//
// # Paths
//
// Virtual paths are owner scoped and rooted at "/". Folders carry a trailing
// "/", files do not. Content paths are assigned once when a node is created
// and never change: a move only rewrites virtual paths, and a copy reuses the
// content path of its source.
//
// # Deletion
//
// Delete removes metadata synchronously and purges content on the task
// queue. Content still referenced by a copy is never purged.
//
// # Example Usage
//
//	files, err := litestore.NewFileService(db.TreeRepo(), store, queue, litestore.ServiceConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := files.Upload(ctx, userID, "/docs/report.pdf", size)
//	// PUT each res.Plan.Links[i] with res.Plan.Sizes[i] bytes, then
//	// files.CompleteUpload(ctx, userID, "/docs/report.pdf", res.Plan.UploadID)
//	// when res.Plan.IsMultipart().
//
// See the http package for the REST API and the database package for the
// metadata backends.
package litestore
