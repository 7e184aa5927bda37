// Package services wraps the third-party HTTP APIs the site talks to behind small interfaces.
//
// # Video Platform
//
// [YouTubeService] implements [VideoSource] against the YouTube Data API v3. It is built over an
// *http.Client that already carries credentials, normally one from [oauth2.NewClient] fed by a token
// stored per user (see [TokenFromCredential]). List calls page through nextPageToken, and every
// request waits on an optional [rate.Limiter].
//
// A 401 response or a failed token refresh maps to [shared.ErrAuthorizationRequired] so callers can
// send the user back through consent ([NewGoogleOAuthConfig], [AuthURL], [Exchange]). Other failures
// wrap [shared.ErrAPIRequest].
//
// # Storage, Mail and Screenshots
//
//   - [S3Storage] : [BlobStore] on aws-sdk-go-v2's upload manager
//   - [SendGridMailer] : [Mailer] on the SendGrid v3 mail send API
//   - [ApiLeapService] : [ScreenshotSource] on ApiLeap's URL-to-image API
//
// Each maps its failures to a sentinel in the shared package ([shared.ErrStorage], [shared.ErrMailDelivery],
// [shared.ErrScreenshot]) so the web layer can log and degrade instead of failing the request.
package services
