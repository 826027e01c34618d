// Package clientcli is a client for a running ferry server.
//
// It lists downloads and their events through the admin API and fetches
// downloads, resuming partial files with a Range request. Bearer tokens are
// kept in named profiles so one machine can talk to several servers.
//
// # Basic Usage
//
//	client, err := clientcli.New(&clientcli.Config{
//		Endpoint: "http://localhost:8080",
//		Token:    "admin-token",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := client.Download(ctx, clientcli.DownloadOptions{
//		IDOrName: "release-1.2.zip",
//		Resume:   true,
//	})
//
// # Profiles
//
//	profiles, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//	p, err := profiles.GetProfile("staging")
//	client, err := clientcli.New(clientcli.ConfigFromProfile(p))
//
// Settings are merged with MergeConfig: profile, then FERRY_ENDPOINT and
// FERRY_TOKEN, then explicit flags.
package clientcli
