// Package clientcli provides a client library for the litestore JSON API.
//
// The client logs in with a username and password and sends the returned
// session token as a bearer token. File contents never pass through the API:
// uploads follow the plan returned by the server, sending each part to its
// presigned URL, and downloads fetch the presigned URL the server returns.
//
// # Basic Usage
//
//	client, err := clientcli.New(&clientcli.Config{Endpoint: "http://localhost:5708"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	token, err := client.Login(ctx, "alice", "correct horse")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err = clientcli.New(&clientcli.Config{Endpoint: "http://localhost:5708", Token: token})
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		LocalPath:  "./report.pdf",
//		RemotePath: "/documents/report.pdf",
//	})
//
// # Profile Configuration
//
// Profiles keep the endpoint and session token of several servers in
// ~/.litestore/config.yaml:
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	profile, err := configFile.GetProfile("home")
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
//
// # Output Formatting
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package clientcli
