// Package arxiv queries the public arXiv API for papers that are not (yet) in
// the local index.
//
// The API returns Atom feeds. Requests are rate limited on the client side;
// arXiv asks clients to send no more than one request every three seconds.
//
//	client := arxiv.NewClient(arxiv.DefaultBaseURL)
//	papers, err := client.Search(ctx, "all:diphoton", 3)
package arxiv
