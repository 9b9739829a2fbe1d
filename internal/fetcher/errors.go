package fetcher
