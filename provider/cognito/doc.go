// Package cognito implements accounts.IdentityProvider on an AWS Cognito
// user pool.
//
// Business rejections (existing username, bad code, wrong password) come
// back as client faults and are reported inside results. Server faults and
// network errors are returned as errors.
package cognito
