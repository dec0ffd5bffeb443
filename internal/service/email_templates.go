package service

import "fmt"

func welcomeEmailTemplate(name, driveURL, appName string) (string, string) {
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`Hi %s,

Your account is ready. Upload your photos, videos and documents and reach them from anywhere:
%s

Files you upload are private to your account.

Best,
The %s Team`, name, driveURL, appName)

	return subject, body
}
